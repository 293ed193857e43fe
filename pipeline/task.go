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

// Package pipeline wires extraction, cleaning and loading into one task per
// entity and runs the tasks in order.
//
// Example usage:
//
//	task, err := pipeline.NewTask("users").
//	    Extract(func(ctx context.Context) (*core.Table, error) {
//	        return extractor.ReadTable(ctx, "legacy_users")
//	    }).
//	    Clean(cleaning.Users()).
//	    Load("dim_users").
//	    Build()
//	if err != nil { log.Fatal(err) }
//	summary := pipeline.NewOrchestrator(cleaner, warehouse).Run(ctx, task)
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/richardchch/Multinational-Database-Centralization/cleaning"
	"github.com/richardchch/Multinational-Database-Centralization/core"
)

// ExtractFunc produces an entity's raw table. On failure it returns an empty
// table and the reason.
type ExtractFunc func(ctx context.Context) (*core.Table, error)

// Task is one entity's extract, clean and load sequence.
type Task struct {
	entity      string
	extract     ExtractFunc
	spec        *cleaning.Spec
	destination string
	snapshots   []core.TableSink
}

// Entity returns the entity name.
func (t *Task) Entity() string { return t.entity }

// Destination returns the warehouse table the task replaces.
func (t *Task) Destination() string { return t.destination }

// TaskBuilder provides a fluent API for constructing a Task.
type TaskBuilder struct {
	task *Task
}

// NewTask starts building the task for entity.
func NewTask(entity string) *TaskBuilder {
	return &TaskBuilder{task: &Task{entity: entity}}
}

// Extract sets the function that reads the raw table.
func (tb *TaskBuilder) Extract(fn ExtractFunc) *TaskBuilder {
	tb.task.extract = fn
	return tb
}

// Clean sets the entity's cleaning rules.
func (tb *TaskBuilder) Clean(spec cleaning.Spec) *TaskBuilder {
	tb.task.spec = &spec
	return tb
}

// Load sets the destination warehouse table.
func (tb *TaskBuilder) Load(table string) *TaskBuilder {
	tb.task.destination = table
	return tb
}

// Snapshot adds sinks that receive a copy of the cleaned table. Their failures
// are logged and do not affect the warehouse load.
func (tb *TaskBuilder) Snapshot(sinks ...core.TableSink) *TaskBuilder {
	for _, s := range sinks {
		if s != nil {
			tb.task.snapshots = append(tb.task.snapshots, s)
		}
	}
	return tb
}

// Build validates and returns the Task.
func (tb *TaskBuilder) Build() (*Task, error) {
	var missing []string
	if strings.TrimSpace(tb.task.entity) == "" {
		missing = append(missing, "entity name")
	}
	if tb.task.extract == nil {
		missing = append(missing, "extract stage")
	}
	if tb.task.spec == nil {
		missing = append(missing, "clean stage")
	}
	if tb.task.destination == "" {
		missing = append(missing, "load destination")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("task %q requires %s", tb.task.entity, strings.Join(missing, ", "))
	}
	return tb.task, nil
}
