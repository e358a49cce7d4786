// Package ellipsis renders table cell values for display, shortening long text
// to a cutoff, appending an ellipsis and wrapping the result in a span whose
// title attribute carries the full text for hover.
//
// A Renderer is bound to one set of Options and is safe for concurrent use.
// Only ModeDisplay transforms; every other mode returns the value untouched so
// sorting, filtering and type detection see the original data.
package ellipsis

import (
	"errors"
	"fmt"

	"github.com/JoobyPM/ellipsis-render/internal/markup"
	"github.com/JoobyPM/ellipsis-render/internal/stringutil"
)

// Marker is appended to shortened text.
const Marker = "…"

// Mode is the consumer's intent for a rendered value.
type Mode string

// Modes understood by the host's rendering contract.
const (
	ModeDisplay Mode = "display"
	ModeSort    Mode = "sort"
	ModeType    Mode = "type"
	ModeFilter  Mode = "filter"
)

// Errors.
var (
	ErrInvalidCutoff = errors.New("cutoff must be at least 1")
	ErrUnknownMode   = errors.New("unknown render mode")
)

// ParseMode converts a mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeDisplay, ModeSort, ModeType, ModeFilter:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Options configures a Renderer.
type Options struct {
	// Cutoff is the maximum number of runes shown before truncation applies.
	Cutoff int `yaml:"cutoff" json:"cutoff"`
	// WordBreak avoids cutting inside a word.
	WordBreak bool `yaml:"word_break" json:"word_break"`
	// EscapeHTML escapes &, <, > and " in the shortened plain text.
	EscapeHTML bool `yaml:"escape_html" json:"escape_html"`
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Cutoff < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidCutoff, o.Cutoff)
	}
	return nil
}

// RenderFunc is the per-cell callback registered with a table host.
// row is the host's row context and is ignored.
type RenderFunc func(value any, mode Mode, row any) any

// Renderer renders values with a fixed set of Options.
type Renderer struct {
	opts Options
}

// New returns a Renderer bound to opts.
func New(opts Options) (*Renderer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Renderer{opts: opts}, nil
}

// MustNew is like New but panics on invalid options.
func MustNew(opts Options) *Renderer {
	r, err := New(opts)
	if err != nil {
		panic(err)
	}
	return r
}

// Options returns the bound options.
func (r *Renderer) Options() Options {
	return r.opts
}

// Func returns the renderer as a host callback.
func (r *Renderer) Func() RenderFunc {
	return r.Render
}

// Render returns value unchanged unless mode is ModeDisplay and value is a
// string or number, in which case it returns the span fragment as a string.
func (r *Renderer) Render(value any, mode Mode, _ any) any {
	if mode != ModeDisplay {
		return value
	}

	in := Classify(value)
	switch in.Kind {
	case KindPlainText:
		return wrap(in.Text, r.Shorten(in.Text))
	case KindMarkup:
		full := in.Fragment.Text()
		if body, cut := r.cut(full); cut {
			in.Fragment.ReplaceText(body, Marker)
		}
		return wrap(full, in.Fragment.Render())
	default:
		return value
	}
}

// Shorten applies the cutoff, word-break and escape policies to text.
// Text within the cutoff is returned as is, without a marker.
func (r *Renderer) Shorten(text string) string {
	body, cut := r.cut(text)
	if !cut {
		return text
	}
	if r.opts.EscapeHTML {
		body = Escape(body)
	}
	return body + Marker
}

// cut returns the unescaped body to keep and whether text needed shortening.
func (r *Renderer) cut(text string) (string, bool) {
	if stringutil.RuneLen(text) <= r.opts.Cutoff {
		return text, false
	}
	body := stringutil.Prefix(text, r.opts.Cutoff-1)
	if r.opts.WordBreak {
		body = stringutil.TrimPartialWord(body)
	}
	return body, true
}

// Escape replaces &, <, > and " with their entity equivalents.
func Escape(s string) string {
	return markup.Escape(s)
}

func wrap(full, inner string) string {
	return `<span class="ellipsis" title="` + Escape(full) + `">` + inner + `</span>`
}
