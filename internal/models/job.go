package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/vidkeeper/internal/common"
)

// Job is the queue payload describing one retrieval request.
//
// UserID and ChatID are 0 for anonymous requests; a zero ChatID disables
// every notification for the job. Attempt counts retries already made and
// EnqueuedAt is the unix time the payload was pushed.
type Job struct {
	URL        string `json:"url"`
	Quality    string `json:"quality"`
	UserID     int64  `json:"user_id"`
	ChatID     int64  `json:"chat_id"`
	Attempt    int    `json:"attempt,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at,omitempty"`
}

// DecodeJob parses a queue payload. Any payload that is not a JSON object
// with a non-empty url yields an error wrapping common.ErrMalformedJob.
func DecodeJob(payload []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(payload, &j); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedJob, err)
	}
	j.URL = strings.TrimSpace(j.URL)
	if j.URL == "" {
		return nil, fmt.Errorf("%w: missing url", common.ErrMalformedJob)
	}
	if j.Quality == "" {
		j.Quality = "best"
	}
	return &j, nil
}

// Encode marshals the job for the queue.
func (j *Job) Encode() ([]byte, error) {
	return json.Marshal(j)
}

// Notifiable reports whether the job has a delivery target.
func (j *Job) Notifiable() bool {
	return j.ChatID != common.AnonymousID
}

// AudioOnly reports whether the job asks for an audio extraction.
func (j *Job) AudioOnly() bool {
	return j.Quality == common.QualityAudio
}
