package registry

import (
	"fmt"

	"github.com/zeusync/worldcore/internal/core/values"
)

// Built-in component names.
const (
	Translation = "core::transform::translation"
	Rotation    = "core::transform::rotation"
	Name        = "core::app::name"
	Radius      = "core::physics::radius"
	Model       = "core::rendering::model"
)

var coreComponents = []Component{
	{Name: Translation, Type: values.ScalarType(values.KindVec3), Description: "world-space position"},
	{Name: Rotation, Type: values.ScalarType(values.KindQuat), Description: "world-space orientation"},
	{Name: Name, Type: values.ScalarType(values.KindString), Description: "human readable label"},
	{Name: Radius, Type: values.ScalarType(values.KindF32), Description: "bounding sphere radius used by raycasts"},
	{Name: Model, Type: values.ScalarType(values.KindObjectRef), Description: "asset reference of the entity's model"},
}

// RegisterCore registers the built-in components. The spatial index and the
// raycaster depend on Translation and Radius.
func RegisterCore(r *Registry) error {
	for _, c := range coreComponents {
		if _, err := r.RegisterComponent(c); err != nil {
			return fmt.Errorf("register core components: %w", err)
		}
	}
	return nil
}
