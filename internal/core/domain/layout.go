package domain

import "path/filepath"

const (
	// WeaveDirName is the name of the internal directory kept under the recipe root.
	WeaveDirName = ".weave"

	// WorkDirName is the name of the default working directory under WeaveDirName.
	WorkDirName = "work"

	// CacheDBName is the name of the key-value store file under WeaveDirName.
	CacheDBName = "cache.db"

	// RecipeFileName is the name of the recipe file.
	RecipeFileName = "weave.yaml"

	// EnvFileName is the name of the optional environment override file next to the recipe.
	EnvFileName = ".env"

	// ActionsKey is the key under which the action cache is persisted.
	ActionsKey = "actions"

	// DefaultCapacity is the default number of (key, inputs) pairs kept by the action cache.
	DefaultCapacity = 1000

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultWeavePath returns the internal directory for the given root.
func DefaultWeavePath(root string) string {
	return filepath.Join(root, WeaveDirName)
}

// DefaultWorkPath returns the default working directory for the given root.
// It joins .weave and work.
func DefaultWorkPath(root string) string {
	return filepath.Join(root, WeaveDirName, WorkDirName)
}

// DefaultCachePath returns the path of the key-value store for the given root.
// It joins .weave and cache.db.
func DefaultCachePath(root string) string {
	return filepath.Join(root, WeaveDirName, CacheDBName)
}
