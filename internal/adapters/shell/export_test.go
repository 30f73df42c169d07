package shell

var (
	ResolveEnvironment = resolveEnvironment
	NormalizeNewlines  = normalizeNewlines
)
