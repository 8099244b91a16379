package toolchain

// ClasspathBundle is an ordered sequence of filesystem paths under a symbolic
// bundle name. Bundles are immutable once produced; Plus returns an extended
// copy rather than mutating in place.
type ClasspathBundle struct {
	Name  string
	Paths []string
}

// Plus returns a new bundle with extra paths appended after the existing
// ones. Ordering is preserved because classpath precedence matters.
func (b ClasspathBundle) Plus(paths ...string) ClasspathBundle {
	combined := make([]string, 0, len(b.Paths)+len(paths))
	combined = append(combined, b.Paths...)
	combined = append(combined, paths...)
	return ClasspathBundle{Name: b.Name, Paths: combined}
}

// ClasspathRegistry maps symbolic bundle names to their resolved paths.
type ClasspathRegistry struct {
	bundles map[string][]string
}

// NewClasspathRegistry builds a registry from configured bundles.
func NewClasspathRegistry(bundles map[string][]string) *ClasspathRegistry {
	m := make(map[string][]string, len(bundles))
	for name, paths := range bundles {
		m[name] = append([]string(nil), paths...)
	}
	return &ClasspathRegistry{bundles: m}
}

// Bundle returns a copy of the named bundle.
func (r *ClasspathRegistry) Bundle(name string) (ClasspathBundle, bool) {
	paths, ok := r.bundles[name]
	if !ok {
		return ClasspathBundle{}, false
	}
	return ClasspathBundle{Name: name, Paths: append([]string(nil), paths...)}, true
}
