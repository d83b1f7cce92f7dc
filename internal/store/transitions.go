package store

import "github.com/Gabyy47/Marina-Mercante-sub000/internal/models"

var transitionMap = map[string][]string{
	"call_next": {models.StatusQueued},
	"repeat":    {models.StatusInService},
	"finalize":  {models.StatusInService},
	"cancel":    {models.StatusQueued, models.StatusInService},
}

func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}
