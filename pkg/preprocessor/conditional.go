package preprocessor

import "github.com/akam1o/cprep/pkg/errors"

// frame is one level of #if/#elif/#else/#endif nesting
type frame struct {
	// takenNow is true while the currently selected branch at this
	// level is emitting
	takenNow bool
	// anyTaken is true once any branch at this level has fired, which
	// keeps later #elif/#else branches off
	anyTaken bool
	// elseSeen forbids further #elif/#else at this level
	elseSeen bool
	// parentActive snapshots whether the enclosing frames were all
	// taken when this frame was pushed
	parentActive bool
}

// active reports whether every conditional frame is currently taken,
// i.e. whether ordinary lines should be emitted
func (p *Preprocessor) active() bool {
	for _, f := range p.cond {
		if !f.takenNow {
			return false
		}
	}
	return true
}

// pushCond pushes a frame for #if/#ifdef/#ifndef. The condition value
// is only meaningful when the enclosing scope is active.
func (p *Preprocessor) pushCond(cond bool) {
	parent := p.active()
	taken := parent && cond
	p.cond = append(p.cond, frame{
		takenNow:     taken,
		anyTaken:     taken,
		parentActive: parent,
	})
}

// elifCond updates the top frame for #elif. evalCond is invoked only
// when the branch could actually fire, so dead-branch expressions
// referencing undefined identifiers never get evaluated.
func (p *Preprocessor) elifCond(evalCond func() (bool, error)) error {
	if len(p.cond) == 0 {
		return errors.Directive("#elif without matching #if")
	}
	f := &p.cond[len(p.cond)-1]
	if f.elseSeen {
		return errors.Directive("#elif after #else")
	}
	f.takenNow = false
	if f.parentActive && !f.anyTaken {
		cond, err := evalCond()
		if err != nil {
			return err
		}
		f.takenNow = cond
		f.anyTaken = f.anyTaken || cond
	}
	return nil
}

// elseCond updates the top frame for #else
func (p *Preprocessor) elseCond() error {
	if len(p.cond) == 0 {
		return errors.Directive("#else without matching #if")
	}
	f := &p.cond[len(p.cond)-1]
	if f.elseSeen {
		return errors.Directive("duplicate #else")
	}
	f.elseSeen = true
	f.takenNow = f.parentActive && !f.anyTaken
	f.anyTaken = true
	return nil
}

// popCond pops the top frame for #endif
func (p *Preprocessor) popCond() error {
	if len(p.cond) == 0 {
		return errors.Directive("#endif without matching #if")
	}
	p.cond = p.cond[:len(p.cond)-1]
	return nil
}
