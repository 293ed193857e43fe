//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of Multinational Database Centralization.
//
// Multinational Database Centralization is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Multinational Database Centralization is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Multinational Database Centralization. If not, see https://www.gnu.org/licenses/.

package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richardchch/Multinational-Database-Centralization/cleaning"
	"github.com/richardchch/Multinational-Database-Centralization/core"
	"github.com/richardchch/Multinational-Database-Centralization/logging"
)

// TableCleaner applies an entity's cleaning rules.
type TableCleaner interface {
	Clean(ctx context.Context, spec cleaning.Spec, raw *core.Table) (*core.Table, cleaning.Report)
}

// TaskResult records what happened to one entity.
type TaskResult struct {
	Entity      string
	Destination string
	Extract     core.Outcome
	Clean       core.Outcome
	Load        core.Outcome
	Snapshots   []core.Outcome
	Warnings    []string
	// Err is set when the task panicked or was cancelled before it started.
	Err      error
	Duration time.Duration
}

// OK reports whether the destination table was replaced or there was nothing to load.
func (r TaskResult) OK() bool {
	return r.Err == nil && r.Extract.OK() && r.Clean.OK() && r.Load.OK()
}

// Summary is the result of one orchestrator run.
type Summary struct {
	RunID    string
	Results  []TaskResult
	Duration time.Duration
}

// Failed returns the entities whose task did not complete cleanly.
func (s Summary) Failed() []string {
	var failed []string
	for _, r := range s.Results {
		if !r.OK() {
			failed = append(failed, r.Entity)
		}
	}
	return failed
}

// Orchestrator runs entity tasks one after another. A failing or panicking
// task is recorded and the next one still runs.
type Orchestrator struct {
	cleaner TableCleaner
	loader  core.TableSink
	logger  *zap.Logger
	newID   func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithRunID fixes the run id instead of generating a UUID.
func WithRunID(id string) Option {
	return func(o *Orchestrator) { o.newID = func() string { return id } }
}

// NewOrchestrator creates an Orchestrator that cleans with cleaner and loads into loader.
func NewOrchestrator(cleaner TableCleaner, loader core.TableSink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cleaner: cleaner,
		loader:  loader,
		logger:  zap.L(),
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.Named("orchestrator")
	return o
}

// Run executes tasks sequentially and always logs "all tasks completed".
func (o *Orchestrator) Run(ctx context.Context, tasks ...*Task) Summary {
	start := time.Now()
	summary := Summary{RunID: o.newID()}
	log := o.logger.With(zap.String("run_id", summary.RunID))
	log.Info("run started", zap.Int("tasks", len(tasks)))

	for _, task := range tasks {
		if task == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			summary.Results = append(summary.Results, TaskResult{
				Entity:      task.entity,
				Destination: task.destination,
				Extract:     core.Outcome{Status: core.StatusSkipped},
				Clean:       core.Outcome{Status: core.StatusSkipped},
				Load:        core.Outcome{Status: core.StatusSkipped},
				Err:         err,
			})
			log.Warn("task not started", zap.String("entity", task.entity), zap.Error(err))
			continue
		}
		summary.Results = append(summary.Results, o.runTask(ctx, task, log))
	}

	summary.Duration = time.Since(start)
	log.Info("all tasks completed",
		zap.Int("tasks", len(summary.Results)),
		zap.Strings("failed", summary.Failed()),
		zap.Duration("elapsed", summary.Duration))
	return summary
}

func (o *Orchestrator) runTask(ctx context.Context, task *Task, runLog *zap.Logger) (res TaskResult) {
	start := time.Now()
	log := runLog.With(zap.String("entity", task.entity), zap.String("table", task.destination))
	ctx = logging.WithLogger(ctx, log)

	res = TaskResult{
		Entity:      task.entity,
		Destination: task.destination,
		Extract:     core.Outcome{Status: core.StatusSkipped},
		Clean:       core.Outcome{Status: core.StatusSkipped},
		Load:        core.Outcome{Status: core.StatusSkipped},
	}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("task %s panicked: %v", task.entity, r)
			log.Error("task panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
		res.Duration = time.Since(start)
		log.Info("task finished",
			zap.Bool("ok", res.OK()),
			zap.Stringer("extract", res.Extract.Status),
			zap.Stringer("clean", res.Clean.Status),
			zap.Stringer("load", res.Load.Status),
			zap.Int("rows", res.Load.Rows),
			zap.Duration("elapsed", res.Duration))
	}()

	log.Info("task started")

	raw, err := task.extract(ctx)
	if raw == nil {
		raw = core.EmptyTable(task.entity)
	}
	res.Extract = extractOutcome(raw, err)
	if raw.Empty() {
		// Nothing to clean or load; the previous warehouse table stays in place.
		log.Warn("no rows extracted, skipping clean and load",
			zap.Stringer("status", res.Extract.Status), zap.Error(err))
		return res
	}

	cleaned, report := o.cleaner.Clean(ctx, *task.spec, raw)
	res.Clean = report.Outcome()
	res.Warnings = report.Warnings

	res.Load, _ = o.loader.Replace(ctx, cleaned, task.destination)

	for _, sink := range task.snapshots {
		out, err := sink.Replace(ctx, cleaned, task.destination)
		if err != nil {
			log.Warn("snapshot failed", zap.Error(err))
		}
		res.Snapshots = append(res.Snapshots, out)
	}
	return res
}

func extractOutcome(t *core.Table, err error) core.Outcome {
	switch {
	case err != nil:
		return core.Outcome{Status: core.StatusSourceFailed, Err: err}
	case t.Empty():
		return core.Outcome{Status: core.StatusEmptySource}
	default:
		return core.Outcome{Status: core.StatusOK, Rows: t.Len()}
	}
}
