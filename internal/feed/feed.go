// Package feed keeps the rendered message list in timestamp order and
// translates live-query change batches into page patches.
package feed

import (
	"strings"
	"time"

	"github.com/johndosdos/friendlychat/internal/model"
)

// Body selects what the message area of a node shows.
type Body int

const (
	BodyEmpty Body = iota
	BodyText
	BodyImage
)

// Node is one rendered message. At is the ordering key assigned at
// insertion; Provisional is true while At is a local placeholder.
type Node struct {
	ID          string
	At          time.Time
	Provisional bool
	Name        string
	PicURL      string
	Text        string
	ImageURL    string
}

// Body reports which content the node renders. Text wins over an image.
func (n Node) Body() Body {
	switch {
	case n.Text != "":
		return BodyText
	case n.ImageURL != "":
		return BodyImage
	default:
		return BodyEmpty
	}
}

// Lines splits the text body on newlines for rendering with line breaks.
func (n Node) Lines() []string {
	return strings.Split(n.Text, "\n")
}

type Op string

const (
	OpInsert  Op = "insert"
	OpReplace Op = "replace"
	OpRemove  Op = "remove"
)

// Patch is one change to the rendered list. For OpInsert, Before names the
// node the new one goes in front of; empty means append.
type Patch struct {
	Op     Op
	Node   Node
	Before string
	ID     string
}

type Options struct {
	// ResortOnTimestamp moves a node inserted under a placeholder timestamp
	// once the store reports the real one.
	ResortOnTimestamp bool
	Now               func() time.Time
}

// Reconciler is owned by a single session and is not safe for concurrent use.
type Reconciler struct {
	nodes []Node
	opts  Options
}

func New(opts Options) *Reconciler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Reconciler{opts: opts}
}

// Apply processes batch in order and returns the patches to send to the
// page, in the order they must be applied.
func (r *Reconciler) Apply(batch model.ChangeBatch) []Patch {
	var patches []Patch
	for _, change := range batch {
		switch change.Kind {
		case model.ChangeRemove:
			if p, ok := r.remove(change.ID); ok {
				patches = append(patches, p)
			}
		case model.ChangeUpsert:
			if change.Message == nil {
				continue
			}
			patches = append(patches, r.upsert(*change.Message)...)
		}
	}
	return patches
}

func (r *Reconciler) remove(id string) (Patch, bool) {
	i := r.index(id)
	if i < 0 {
		return Patch{}, false
	}
	r.nodes = append(r.nodes[:i], r.nodes[i+1:]...)
	return Patch{Op: OpRemove, ID: id}, true
}

func (r *Reconciler) upsert(msg model.Message) []Patch {
	i := r.index(msg.ID)
	if i < 0 {
		n := Node{ID: msg.ID}
		if msg.CreatedAt != nil {
			n.At = *msg.CreatedAt
		} else {
			n.At = r.opts.Now()
			n.Provisional = true
		}
		fill(&n, msg)
		return []Patch{r.insert(n)}
	}

	n := r.nodes[i]
	fill(&n, msg)

	if n.Provisional && msg.CreatedAt != nil && r.opts.ResortOnTimestamp {
		n.At = *msg.CreatedAt
		n.Provisional = false
		r.nodes = append(r.nodes[:i], r.nodes[i+1:]...)
		return []Patch{{Op: OpRemove, ID: n.ID}, r.insert(n)}
	}

	r.nodes[i] = n
	return []Patch{{Op: OpReplace, Node: n}}
}

// insert places n before the first node whose timestamp is strictly later,
// scanning from the head, so equal timestamps keep arrival order.
func (r *Reconciler) insert(n Node) Patch {
	pos := len(r.nodes)
	for i, existing := range r.nodes {
		if existing.At.After(n.At) {
			pos = i
			break
		}
	}

	var before string
	if pos < len(r.nodes) {
		before = r.nodes[pos].ID
	}

	r.nodes = append(r.nodes, Node{})
	copy(r.nodes[pos+1:], r.nodes[pos:])
	r.nodes[pos] = n

	return Patch{Op: OpInsert, Node: n, Before: before}
}

// fill copies the displayed fields. A missing picture or body leaves what is
// already rendered.
func fill(n *Node, msg model.Message) {
	n.Name = msg.Name
	if msg.ProfilePicURL != "" {
		n.PicURL = msg.ProfilePicURL
	}
	switch {
	case msg.Text != "":
		n.Text, n.ImageURL = msg.Text, ""
	case msg.ImageURL != "":
		n.Text, n.ImageURL = "", msg.ImageURL
	}
}

func (r *Reconciler) index(id string) int {
	for i, n := range r.nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// Node returns the rendered node with id.
func (r *Reconciler) Node(id string) (Node, bool) {
	if i := r.index(id); i >= 0 {
		return r.nodes[i], true
	}
	return Node{}, false
}

// IDs returns the rendered order.
func (r *Reconciler) IDs() []string {
	ids := make([]string, len(r.nodes))
	for i, n := range r.nodes {
		ids[i] = n.ID
	}
	return ids
}

func (r *Reconciler) Len() int {
	return len(r.nodes)
}
