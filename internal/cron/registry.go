package cron

import (
	"context"
	"fmt"
	"slices"
)

// Job is one task executed on every cron cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order. Names label metrics and logs so
// they must be unique.
type Registry struct {
	jobs []Job
}

// NewRegistry registers jobs in order, skipping nils.
func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	if slices.ContainsFunc(r.jobs, func(j Job) bool { return j.Name() == job.Name() }) {
		return fmt.Errorf("cron job %q registered twice", job.Name())
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a snapshot; callers may modify it freely.
func (r *Registry) Jobs() []Job {
	return slices.Clone(r.jobs)
}
