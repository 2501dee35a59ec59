package report

// Scan is the envelope transferred to the evaluation service. Dependencies
// holds exactly one component: the scanned project, with the mapped tree
// below it.
type Scan struct {
	Project      string        `json:"project"`
	Module       string        `json:"module"`
	ModuleID     string        `json:"moduleId"`
	Branch       string        `json:"branch,omitempty"`
	Tag          string        `json:"tag,omitempty"`
	Dependencies []*Dependency `json:"dependencies"`
}

// NewScan wraps root into an envelope.
func NewScan(project, module, moduleID string, root *Dependency) *Scan {
	s := &Scan{
		Project:      project,
		Module:       module,
		ModuleID:     moduleID,
		Dependencies: []*Dependency{},
	}
	if root != nil {
		s.Dependencies = append(s.Dependencies, root)
	}
	return s
}

// WithBranch sets the branch the scan was taken on.
func (s *Scan) WithBranch(branch string) *Scan {
	s.Branch = branch
	return s
}

// WithTag sets the tag the scan was taken on.
func (s *Scan) WithTag(tag string) *Scan {
	s.Tag = tag
	return s
}

// Root returns the top-level component, or nil.
func (s *Scan) Root() *Dependency {
	if len(s.Dependencies) == 0 {
		return nil
	}
	return s.Dependencies[0]
}

// ComponentCount returns the number of components in the envelope.
func (s *Scan) ComponentCount() int {
	n := 0
	for _, d := range s.Dependencies {
		n += d.Count()
	}
	return n
}
