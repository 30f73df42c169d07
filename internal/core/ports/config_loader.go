package ports

import "go.trai.ch/weave/internal/core/domain"

// RecipeLoader defines the interface for loading a recipe.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type RecipeLoader interface {
	// Load reads the recipe found from the given working directory.
	Load(cwd string) (*domain.Recipe, error)

	// DiscoverRoot walks up from cwd to find the directory containing weave.yaml.
	DiscoverRoot(cwd string) (string, error)
}
