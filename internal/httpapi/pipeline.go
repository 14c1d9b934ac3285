package httpapi

import "net/http"

// Filter is one stage of the request pipeline. Handle either returns the
// (possibly re-contextualized) request and true to continue, or writes the
// response itself and returns false.
type Filter struct {
	Name    string
	Applies func(r *http.Request) bool
	Handle  func(w http.ResponseWriter, r *http.Request) (*http.Request, bool)
}

// Pipeline runs filters in order and then the final handler. It is built
// once at startup and never mutated.
type Pipeline struct {
	filters []Filter
	final   http.Handler
}

func NewPipeline(final http.Handler, filters ...Filter) *Pipeline {
	return &Pipeline{filters: append([]Filter(nil), filters...), final: final}
}

// Names lists the filters in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.filters))
	for i, f := range p.filters {
		names[i] = f.Name
	}
	return names
}

func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for _, f := range p.filters {
		if f.Applies != nil && !f.Applies(r) {
			continue
		}
		next, ok := f.Handle(w, r)
		if !ok {
			return
		}
		if next != nil {
			r = next
		}
	}
	p.final.ServeHTTP(w, r)
}
