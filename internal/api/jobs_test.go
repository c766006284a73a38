package api

import (
	"testing"
	"time"

	"study-buddy/internal/models"
)

func TestJobLifecycle(t *testing.T) {
	m := NewJobManager()

	id, snapshot := m.CreateJob(models.ActionExplain, "gravity", "⏳ Generating explanation, please wait...")
	if snapshot.Status != JobStatusPending || snapshot.Message != "⏳ Generating explanation, please wait..." {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}

	m.MarkPending(id, "still working")
	job, ok := m.GetJob(id)
	if !ok || job.Message != "still working" {
		t.Fatalf("unexpected job %+v", job)
	}

	m.MarkDone(id, "# Gravity", "", true, 0)
	job, _ = m.GetJob(id)
	if job.Status != JobStatusDone || job.Message != "# Gravity" || !job.OK {
		t.Fatalf("unexpected finished job %+v", job)
	}

	// a late pending notification never reverts a finished job
	m.MarkPending(id, "late")
	job, _ = m.GetJob(id)
	if job.Status != JobStatusDone || job.Message != "# Gravity" {
		t.Fatalf("finished job changed: %+v", job)
	}
}

func TestJobSnapshotsAreCopies(t *testing.T) {
	m := NewJobManager()
	id, snapshot := m.CreateJob(models.ActionFlashcards, "cells", "pending")
	snapshot.Message = "mutated"

	job, _ := m.GetJob(id)
	if job.Message != "pending" {
		t.Fatalf("stored job mutated through snapshot: %+v", job)
	}
}

func TestUnknownJob(t *testing.T) {
	m := NewJobManager()
	if _, ok := m.GetJob("missing"); ok {
		t.Fatal("expected missing job")
	}
	m.MarkDone("missing", "x", "", true, 0)
}

func TestFinishedJobsArePruned(t *testing.T) {
	m := NewJobManager()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	doneID, _ := m.CreateJob(models.ActionExplain, "a", "p")
	m.MarkDone(doneID, "text", "", true, 0)
	pendingID, _ := m.CreateJob(models.ActionExplain, "b", "p")

	now = now.Add(jobRetention + time.Minute)
	m.CreateJob(models.ActionExplain, "c", "p")

	if _, ok := m.GetJob(doneID); ok {
		t.Fatal("expected finished job to be pruned")
	}
	if _, ok := m.GetJob(pendingID); !ok {
		t.Fatal("pending job must survive pruning")
	}
}
