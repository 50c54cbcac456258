// Package session holds the state of one connected chat page: its feed,
// send gate, signed-in user and draft. Every mutation happens on the
// goroutine running Run, in the order events arrive.
package session

import (
	"context"
	"log"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/johndosdos/friendlychat/internal/counter"
	"github.com/johndosdos/friendlychat/internal/feed"
	"github.com/johndosdos/friendlychat/internal/metrics"
	"github.com/johndosdos/friendlychat/internal/model"
	"github.com/johndosdos/friendlychat/internal/submission"
)

// MaxDraftLength is where the character counter turns red. Longer drafts
// are still accepted.
const MaxDraftLength = 100

// Store is the live store as seen by a session.
type Store interface {
	submission.Store
	CountByAuthor(ctx context.Context, authorID uuid.UUID) (int, error)
}

type Options struct {
	Feed       feed.Options
	Submission submission.Options
	Limit      int
	InboxSize  int
}

type (
	authEvent  struct{ user *model.SessionUser }
	batchEvent struct{ batch model.ChangeBatch }
	draftEvent struct{ text string }
	textEvent  struct{ text string }
	imageEvent struct{ file submission.Upload }
)

// Session is one connected page.
type Session struct {
	// ID is a random token; knowing it is enough to post images into the
	// session, so it must not be guessable from another session's ID.
	ID string

	openedBy uuid.UUID
	user     *model.SessionUser
	draft    string
	store    Store
	reporter submission.Reporter
	feed     *feed.Reconciler
	counter  *counter.Counter
	ctrl     *submission.Controller

	runCtx context.Context
	inbox  chan any
	outbox chan Update
	done   chan struct{}
}

// New returns a session for a page opened by user, who may be nil.
func New(user *model.SessionUser, store Store, objects submission.Objects,
	reporter submission.Reporter, opts Options) *Session {
	if opts.InboxSize <= 0 {
		opts.InboxSize = 64
	}

	s := &Session{
		ID:       uuid.NewString(),
		user:     user,
		store:    store,
		reporter: reporter,
		feed:     feed.New(opts.Feed),
		counter:  counter.New(opts.Limit),
		inbox:    make(chan any, opts.InboxSize),
		outbox:   make(chan Update, opts.InboxSize),
		done:     make(chan struct{}),
		runCtx:   context.Background(),
	}
	if user != nil {
		s.openedBy = user.ID
	}
	s.ctrl = submission.New(store, objects, reporter, s.counter, s.applyBatch, opts.Submission)

	return s
}

// Updates streams the patches for the page. It is closed when Run returns.
func (s *Session) Updates() <-chan Update {
	return s.outbox
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// UserID returns the id of the user the session was opened with, or
// uuid.Nil. It is only meant for routing decisions made before Run starts,
// such as hub registration.
func (s *Session) UserID() uuid.UUID {
	return s.openedBy
}

// Deliver queues a change batch without blocking. It reports false when the
// inbox is full; the caller should drop the session rather than the batch.
func (s *Session) Deliver(batch model.ChangeBatch) bool {
	return s.offer(batchEvent{batch: batch})
}

// SetUser queues an auth-state change without blocking.
func (s *Session) SetUser(user *model.SessionUser) bool {
	return s.offer(authEvent{user: user})
}

// Draft records the current content of the text field.
func (s *Session) Draft(ctx context.Context, text string) error {
	return s.send(ctx, draftEvent{text: text})
}

// SubmitText submits text as a new message.
func (s *Session) SubmitText(ctx context.Context, text string) error {
	return s.send(ctx, textEvent{text: text})
}

// SubmitImage submits an image picked by the user.
func (s *Session) SubmitImage(ctx context.Context, file submission.Upload) error {
	return s.send(ctx, imageEvent{file: file})
}

func (s *Session) offer(ev any) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.inbox <- ev:
		return true
	default:
		return false
	}
}

func (s *Session) send(ctx context.Context, ev any) error {
	select {
	case s.inbox <- ev:
		return nil
	case <-s.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events until ctx is cancelled. Uploads started by the
// session are waited for before Run returns.
func (s *Session) Run(ctx context.Context) {
	s.runCtx = ctx
	metrics.SessionOpened()
	defer func() {
		metrics.SessionClosed()
		close(s.done)
		s.ctrl.Wait()
		close(s.outbox)
	}()

	s.observe(ctx, s.user)
	s.emit(ctx, Update{Kind: UpdateCharCounter, Length: 0})

	for {
		select {
		case ev := <-s.inbox:
			s.handle(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) handle(ctx context.Context, ev any) {
	switch ev := ev.(type) {
	case authEvent:
		s.observe(ctx, ev.user)

	case batchEvent:
		s.applyBatch(ev.batch)

	case draftEvent:
		s.draft = ev.text
		s.emit(ctx, Update{Kind: UpdateCharCounter, Length: utf8.RuneCountInString(s.draft)})
		s.emitSendButton(ctx)

	case textEvent:
		s.draft = ev.text
		res := s.ctrl.SubmitText(ctx, s.user, s.draft)
		if res.Notice != nil {
			s.emit(ctx, Update{Kind: UpdateNotice, Notice: res.Notice})
		}
		if res.Sent {
			s.draft = ""
			s.emit(ctx, Update{Kind: UpdateClearDraft})
			s.emit(ctx, Update{Kind: UpdateCharCounter, Length: 0})
			s.refreshCount(ctx)
		}

	case imageEvent:
		res := s.ctrl.SubmitImage(ctx, s.user, ev.file)
		if res.Notice != nil {
			s.emit(ctx, Update{Kind: UpdateNotice, Notice: res.Notice})
		}
		if res.Sent {
			s.refreshCount(ctx)
		}

	default:
		log.Printf("internal/session: unknown event %T", ev)
	}
}

// applyBatch runs on the session goroutine, either from a delivered batch or
// from the controller's local echo.
func (s *Session) applyBatch(batch model.ChangeBatch) {
	ctx := s.runCtx
	for _, p := range s.feed.Apply(batch) {
		s.emit(ctx, Update{Kind: UpdateFeed, Feed: p})
	}
	metrics.FeedBatch()
	s.refreshCount(ctx)
}

func (s *Session) refreshCount(ctx context.Context) {
	signedIn := s.user != nil
	err := s.counter.Refresh(ctx, signedIn, func(ctx context.Context) (int, error) {
		return s.store.CountByAuthor(ctx, s.user.ID)
	})
	if err != nil {
		s.reporter.Report(ctx, "error counting user messages", err, "user_id", s.user.ID.String())
	}
	s.emitSendButton(ctx)
}

// emitSendButton enables sending only for a signed-in user within the limit
// with a non-empty draft.
func (s *Session) emitSendButton(ctx context.Context) {
	canSend := s.user != nil && s.counter.CanSend(s.draft)
	s.emit(ctx, Update{Kind: UpdateSendButton, CanSend: canSend})
}

// emit blocks until the page writer takes u. The outbox is closed only
// after Run returns, so a cancelled writer cannot strand the session.
func (s *Session) emit(ctx context.Context, u Update) {
	select {
	case s.outbox <- u:
	case <-ctx.Done():
	}
}

// FeedIDs returns the rendered order. Like every other accessor it must be
// called from the goroutine running Run, or after Run has returned.
func (s *Session) FeedIDs() []string {
	return s.feed.IDs()
}

func (s *Session) Sent() int {
	return s.counter.Sent()
}
