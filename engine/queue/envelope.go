package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hookline/hookline/engine/core"
)

// Job is the envelope evaluators enqueue and workers drain. The JSON shape is
// a stable contract: producers and consumers of other builds of this system
// read the same four top-level keys.
type Job struct {
	Trigger   JobTrigger  `json:"trigger"`
	Action    JobStep     `json:"action"`
	Reaction  JobStep     `json:"reaction"`
	EventData core.Params `json:"event_data"`
}

// JobTrigger carries only the trigger kind name, for logging and tracing.
type JobTrigger struct {
	Name string `json:"name"`
}

// JobStep names a component and carries the two maps the worker rebuilds it
// from: Params holds the event-derived values, Config the area's option map
// with the resolved credential under "token" (null when the user never
// linked the service).
type JobStep struct {
	Name   string      `json:"name"`
	Params core.Params `json:"params"`
	Config core.Params `json:"config"`
}

// Encode serializes the job for the queue.
func (j *Job) Encode() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job: %w", err)
	}
	return data, nil
}

// Validate checks the envelope carries enough to be executable. Structural
// gaps wrap core.ErrMalformedJob so the worker can discard without retry.
func (j *Job) Validate() error {
	if j.Action.Name == "" {
		return fmt.Errorf("%w: missing action name", core.ErrMalformedJob)
	}
	if j.Reaction.Name == "" {
		return fmt.Errorf("%w: missing reaction name", core.ErrMalformedJob)
	}
	return nil
}

// DecodeJob parses a queue payload. Any parse or structural failure wraps
// core.ErrMalformedJob.
func DecodeJob(data []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedJob, err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}
