// Package delivery sends job outcomes to the requester: the completion
// summary, the artifact itself (or a link when it exceeds the channel's
// payload ceiling), the optional description and failure notices.
package delivery

import (
	"context"
	"os"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/logging"
	"github.com/dmitrijs2005/vidkeeper/internal/models"
	"github.com/dmitrijs2005/vidkeeper/internal/offload"
)

// Dispatcher formats messages and routes them through a Notifier.
type Dispatcher struct {
	notifier Notifier
	linker   offload.Linker
	maxBytes int64
	loc      *time.Location
	logger   logging.Logger
}

// NewDispatcher returns a Dispatcher. linker may be nil, in which case the
// oversized notice carries no link.
func NewDispatcher(n Notifier, linker offload.Linker, maxBytes int64, logger logging.Logger) *Dispatcher {
	return &Dispatcher{
		notifier: n,
		linker:   linker,
		maxBytes: maxBytes,
		loc:      time.Local,
		logger:   logger.With("module", "delivery"),
	}
}

// Completion sends the summary of a to chatID.
func (d *Dispatcher) Completion(ctx context.Context, chatID int64, a *models.Artifact) error {
	err := d.notifier.Notify(ctx, chatID, Summary(a, d.loc))
	observe("completion", err)
	return err
}

// Transfer sends the artifact file. Files above the payload ceiling are never
// uploaded; the requester gets the alternate retrieval notice instead. Send
// failures, including a file that vanished, are reported to the requester
// and do not fail the job. The returned error is only set when even the
// notice could not be delivered.
func (d *Dispatcher) Transfer(ctx context.Context, chatID int64, a *models.Artifact) error {
	fi, err := os.Stat(a.FilePath)
	if err != nil {
		return d.transferFailed(ctx, chatID, a, err)
	}

	if size := fi.Size(); size > d.maxBytes {
		d.logger.Info(ctx, "artifact over payload ceiling", "artifact", a.ID, "size", size, "limit", d.maxBytes)
		err := d.notifier.Notify(ctx, chatID, tooLargeText(size, d.maxBytes, d.link(ctx, a)))
		observe("oversized", err)
		return err
	}

	if a.IsAudio() {
		err = d.notifier.SendAudio(ctx, chatID, a.FilePath)
	} else {
		thumb := a.ThumbnailPath
		if thumb != "" {
			if _, statErr := os.Stat(thumb); statErr != nil {
				thumb = ""
			}
		}
		err = d.notifier.SendVideo(ctx, chatID, a.FilePath, thumb)
	}
	if err != nil {
		return d.transferFailed(ctx, chatID, a, err)
	}
	observe("transfer", nil)
	return nil
}

func (d *Dispatcher) transferFailed(ctx context.Context, chatID int64, a *models.Artifact, cause error) error {
	observe("transfer", cause)
	d.logger.Error(ctx, "error sending file", "artifact", a.ID, "error", cause)
	return d.notifier.Notify(ctx, chatID, "❌ Error sending file: "+cause.Error())
}

func (d *Dispatcher) link(ctx context.Context, a *models.Artifact) string {
	if d.linker == nil {
		return ""
	}
	l, err := d.linker.Link(ctx, a)
	if err != nil {
		d.logger.Warn(ctx, "alternate link unavailable", "artifact", a.ID, "error", err)
		return ""
	}
	return l
}

// Description sends the artifact description when it is not blank. Errors
// are logged only.
func (d *Dispatcher) Description(ctx context.Context, chatID int64, title, desc string) {
	text := DescriptionText(desc)
	if text == "" {
		d.logger.Debug(ctx, "no description, skipping", "title", title)
		return
	}
	err := d.notifier.Notify(ctx, chatID, text)
	observe("description", err)
	if err != nil {
		d.logger.Error(ctx, "error sending description", "title", title, "error", err)
	}
}

// Failure tells the requester the job failed for reason.
func (d *Dispatcher) Failure(ctx context.Context, chatID int64, reason string) error {
	err := d.notifier.Notify(ctx, chatID, FailureText(reason))
	observe("failure", err)
	return err
}

// Error tells the requester that processing broke after extraction.
func (d *Dispatcher) Error(ctx context.Context, chatID int64, cause error) error {
	err := d.notifier.Notify(ctx, chatID, ErrorText(cause))
	observe("error", err)
	return err
}

// Discard is a Notifier that drops everything. It backs the worker when no
// bot token is configured.
type Discard struct{}

func (Discard) Notify(context.Context, int64, string) error { return nil }

func (Discard) SendVideo(context.Context, int64, string, string) error { return nil }

func (Discard) SendAudio(context.Context, int64, string) error { return nil }

var _ Notifier = Discard{}
