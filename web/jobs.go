// Copyright 2018 Fabian Wenzelmann
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package web

import (
	"context"
	"sync"
	"time"

	"github.com/FabianWe/gmapsimage"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// JobID identifies a background job.
type JobID uuid.UUID

// GenJobID returns a new random id.
func GenJobID() (JobID, error) {
	id, idErr := uuid.NewRandom()
	return JobID(id), idErr
}

// ParseJobID parses the string representation of an id.
func ParseJobID(s string) (JobID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return JobID{}, errors.Wrapf(err, "invalid job id \"%s\"", s)
	}
	return JobID(id), nil
}

func (id JobID) String() string {
	return uuid.UUID(id).String()
}

// JobStatus is the state of a job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is an image constructed in the background.
type Job struct {
	ID     JobID
	Params ImageParams

	ctx    context.Context
	cancel context.CancelFunc

	mutex     sync.RWMutex
	created   time.Time
	updated   time.Time
	status    JobStatus
	tilesDone int
	result    *gmapsimage.Result
	err       error
}

// NewJob returns a pending job.
func NewJob(id JobID, params ImageParams) *Job {
	now := time.Now().UTC()
	ctx, cancel := context.WithCancel(context.Background())
	return &Job{
		ID:      id,
		Params:  params,
		ctx:     ctx,
		cancel:  cancel,
		created: now,
		updated: now,
		status:  JobPending,
	}
}

func (job *Job) start() {
	job.mutex.Lock()
	defer job.mutex.Unlock()
	job.status = JobRunning
	job.updated = time.Now().UTC()
}

func (job *Job) progress(num int) {
	job.mutex.Lock()
	defer job.mutex.Unlock()
	job.tilesDone = num
	job.updated = time.Now().UTC()
}

// finish stores the outcome and releases the job's context.
func (job *Job) finish(result *gmapsimage.Result, err error) {
	defer job.cancel()
	job.mutex.Lock()
	defer job.mutex.Unlock()
	job.updated = time.Now().UTC()
	if err != nil {
		job.status, job.err = JobFailed, err
		return
	}
	job.status, job.result = JobDone, result
}

// Cancel stops a running job.
func (job *Job) Cancel() {
	job.cancel()
}

// Result returns the result once the job is done. Both values are nil while
// the job is running.
func (job *Job) Result() (*gmapsimage.Result, error) {
	job.mutex.RLock()
	defer job.mutex.RUnlock()
	return job.result, job.err
}

// Expired reports whether the job was not updated for maxAge. Running jobs
// never expire.
func (job *Job) Expired(now time.Time, maxAge time.Duration) bool {
	job.mutex.RLock()
	defer job.mutex.RUnlock()
	if job.status == JobRunning {
		return false
	}
	return now.Sub(job.updated) >= maxAge
}

// JobInfo is the JSON representation of a job.
type JobInfo struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	Created   time.Time `json:"created"`
	Updated   time.Time `json:"updated"`
	TilesDone int       `json:"tiles_done"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Zoom      int       `json:"zoom"`
	Scale     int       `json:"scale"`
}

// Info returns the current state of the job.
func (job *Job) Info() JobInfo {
	job.mutex.RLock()
	defer job.mutex.RUnlock()
	info := JobInfo{
		ID:        job.ID.String(),
		Status:    job.status,
		Created:   job.created,
		Updated:   job.updated,
		TilesDone: job.tilesDone,
		Zoom:      job.Params.Zoom,
		Scale:     job.Params.Scale,
	}
	if job.err != nil {
		info.Error = job.err.Error()
	}
	if job.result != nil {
		bounds := job.result.Image.Bounds()
		info.Width, info.Height = bounds.Dx(), bounds.Dy()
	}
	return info
}

var (
	ErrJobNotFound = errors.New("Job not found")
)

// JobStorage stores jobs by id.
type JobStorage interface {
	Get(id JobID) (*Job, error)
	Set(id JobID, job *Job) error
	Delete(id JobID) error
	Filter(maxAge time.Duration) error
}

// MemStorage keeps jobs in memory.
type MemStorage struct {
	mutex  *sync.RWMutex
	jobMap map[JobID]*Job
}

func NewMemStorage() *MemStorage {
	m := new(sync.RWMutex)
	jobMap := make(map[JobID]*Job, 100)
	return &MemStorage{
		mutex:  m,
		jobMap: jobMap,
	}
}

func (s *MemStorage) Get(id JobID) (*Job, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	job, has := s.jobMap[id]
	if has {
		return job, nil
	}
	return nil, errors.Wrapf(ErrJobNotFound, "%s", id)
}

func (s *MemStorage) Set(id JobID, job *Job) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.jobMap[id] = job
	return nil
}

func (s *MemStorage) Delete(id JobID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if job, has := s.jobMap[id]; has {
		job.Cancel()
		delete(s.jobMap, id)
	}
	return nil
}

// Len returns the number of stored jobs.
func (s *MemStorage) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.jobMap)
}

// Filter removes all expired jobs.
func (s *MemStorage) Filter(maxAge time.Duration) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	now := time.Now().UTC()
	for id, job := range s.jobMap {
		if job.Expired(now, maxAge) {
			job.Cancel()
			delete(s.jobMap, id)
		}
	}
	return nil
}

// RunFilter calls Filter on storage every interval until the returned channel
// is closed. A non-positive interval means one minute.
func RunFilter(storage JobStorage, maxAge, interval time.Duration) chan<- struct{} {
	if interval <= 0 {
		interval = time.Minute
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := storage.Filter(maxAge); err != nil {
					log.WithError(err).Error("Can't remove expired jobs")
				}
			}
		}
	}()
	return done
}
