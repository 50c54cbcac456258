// Package submission gates and dispatches outgoing text and image messages.
package submission

import (
	"context"
	"fmt"
	"html"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/xid"

	"github.com/johndosdos/friendlychat/internal/apperror"
	"github.com/johndosdos/friendlychat/internal/counter"
	"github.com/johndosdos/friendlychat/internal/metrics"
	"github.com/johndosdos/friendlychat/internal/model"
	"github.com/johndosdos/friendlychat/internal/profile"
)

// LoadingImageURL is shown while an image upload is in flight.
const LoadingImageURL = "https://www.google.com/images/spin-32.gif?a"

// Store is the subset of the live store the controller writes to.
type Store interface {
	CreateMessage(ctx context.Context, msg model.Message) (model.Message, error)
	CompleteImage(ctx context.Context, id, imageURL, storageURI string) error
	FailMessage(ctx context.Context, id string) error
}

// Objects stores uploaded image bytes.
type Objects interface {
	Upload(ctx context.Context, key, contentType string, body []byte) (string, error)
	PublicURL(ctx context.Context, key string) (string, error)
}

// Reporter receives external-write failures.
type Reporter interface {
	Report(ctx context.Context, msg string, err error, kv ...any)
}

// filenamePolicy strips markup from uploaded file names before they become
// part of an object key.
var filenamePolicy = bluemonday.StrictPolicy()

// Upload is an image picked by the user.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Result tells the session what followed from a submission. Notice is set
// when a precondition failed and nothing was written.
type Result struct {
	Notice *apperror.Notice
	Sent   bool
}

type Options struct {
	// LimitImages applies the message limit to images too. The page this
	// replaces only limited text messages.
	LimitImages     bool
	LoadingImageURL string
	UploadTimeout   time.Duration
}

// Controller is owned by a single session. Image uploads continue on their
// own goroutine after SubmitImage returns.
type Controller struct {
	store    Store
	objects  Objects
	reporter Reporter
	counter  *counter.Counter
	echo     func(model.ChangeBatch)
	newID    func() string
	opts     Options
	wg       sync.WaitGroup
}

// New returns a Controller. echo applies local changes to the sender's own
// feed before the store acknowledges them.
func New(store Store, objects Objects, reporter Reporter, c *counter.Counter,
	echo func(model.ChangeBatch), opts Options) *Controller {
	if opts.LoadingImageURL == "" {
		opts.LoadingImageURL = LoadingImageURL
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 2 * time.Minute
	}
	if echo == nil {
		echo = func(model.ChangeBatch) {}
	}

	return &Controller{
		store:    store,
		objects:  objects,
		reporter: reporter,
		counter:  c,
		echo:     echo,
		newID:    func() string { return xid.New().String() },
		opts:     opts,
	}
}

// SubmitText stores draft as a text message from user.
func (c *Controller) SubmitText(ctx context.Context, user *model.SessionUser, draft string) Result {
	if c.counter.Exhausted() {
		metrics.Submitted("text", "rate_limited")
		return Result{Notice: apperror.RateLimited(c.counter.Limit())}
	}
	if draft == "" {
		return Result{}
	}
	if user == nil {
		metrics.Submitted("text", "signed_out")
		return Result{Notice: apperror.NotSignedIn()}
	}

	// Stored as typed; markup is escaped when the message is rendered.
	msg := c.authored(user)
	msg.Text = draft
	msg.Status = model.StatusComplete

	c.echo(model.ChangeBatch{model.Upsert(msg)})

	if _, err := c.store.CreateMessage(ctx, msg); err != nil {
		c.echo(model.ChangeBatch{model.Remove(msg.ID)})
		c.reporter.Report(ctx, "error writing new message", err,
			"message_id", msg.ID,
			"user_id", user.ID.String())
		metrics.Submitted("text", "failed")
		return Result{}
	}

	metrics.Submitted("text", "ok")
	return Result{Sent: true}
}

// SubmitImage writes a placeholder record for file and uploads it in the
// background. The record is completed once the upload finishes.
func (c *Controller) SubmitImage(ctx context.Context, user *model.SessionUser, file Upload) Result {
	if !strings.HasPrefix(file.ContentType, "image/") {
		metrics.Submitted("image", "not_image")
		return Result{Notice: apperror.NotImage()}
	}
	if user == nil {
		metrics.Submitted("image", "signed_out")
		return Result{Notice: apperror.NotSignedIn()}
	}
	if c.opts.LimitImages && c.counter.Exhausted() {
		metrics.Submitted("image", "rate_limited")
		return Result{Notice: apperror.RateLimited(c.counter.Limit())}
	}

	msg := c.authored(user)
	msg.ImageURL = c.opts.LoadingImageURL
	msg.Status = model.StatusPending

	c.echo(model.ChangeBatch{model.Upsert(msg)})

	if _, err := c.store.CreateMessage(ctx, msg); err != nil {
		c.echo(model.ChangeBatch{model.Remove(msg.ID)})
		c.reporter.Report(ctx, "error writing image placeholder", err,
			"message_id", msg.ID,
			"user_id", user.ID.String())
		metrics.Submitted("image", "failed")
		return Result{}
	}

	// The upload outlives the request or socket event that started it.
	uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.UploadTimeout)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.finishImage(uploadCtx, user.ID.String(), msg.ID, file)
	}()

	return Result{Sent: true}
}

func (c *Controller) finishImage(ctx context.Context, userID, id string, file Upload) {
	key := ObjectKey(userID, id, file.Filename)

	err := func() error {
		fullPath, err := c.objects.Upload(ctx, key, file.ContentType, file.Data)
		if err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}

		url, err := c.objects.PublicURL(ctx, fullPath)
		if err != nil {
			return fmt.Errorf("public url %s: %w", fullPath, err)
		}

		if err := c.store.CompleteImage(ctx, id, url, fullPath); err != nil {
			return fmt.Errorf("complete message %s: %w", id, err)
		}
		return nil
	}()
	if err == nil {
		metrics.Submitted("image", "ok")
		return
	}

	metrics.Submitted("image", "failed")
	c.reporter.Report(ctx, "error uploading image", err,
		"message_id", id,
		"user_id", userID)

	if err := c.store.FailMessage(ctx, id); err != nil {
		c.reporter.Report(ctx, "error marking message failed", err, "message_id", id)
	}
}

// Wait blocks until in-flight uploads have finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) authored(user *model.SessionUser) model.Message {
	return model.Message{
		ID:            c.newID(),
		AuthorID:      user.ID,
		Name:          user.DisplayName,
		ProfilePicURL: profile.OrPlaceholder(user.PhotoURL),
	}
}

// ObjectKey is the storage path of an uploaded image.
func ObjectKey(userID, messageID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.TrimSpace(html.UnescapeString(filenamePolicy.Sanitize(name)))
	if name == "." || name == "/" || name == "" {
		name = "image"
	}
	return userID + "/" + messageID + "/" + name
}
