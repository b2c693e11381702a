package physics

import (
	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/spatial"
	"github.com/zeusync/worldcore/internal/core/values"
)

// Hit is one entity struck by a ray, at Distance along the normalized direction.
type Hit struct {
	Entity   models.EntityID
	Distance float32
}

// BodySource supplies candidate bounding spheres near a point.
type BodySource interface {
	Bodies(center values.Vec3, radius float32, spheres bool) []spatial.Body
}
