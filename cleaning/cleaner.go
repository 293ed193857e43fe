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

// Package cleaning turns raw extracted tables into warehouse-ready ones.
//
// Each entity is described by a Spec, an ordered list of Steps. A single Cleaner
// runs any Spec, logs the row count after every step and reports why the result
// looks the way it does.
package cleaning

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/richardchch/Multinational-Database-Centralization/core"
	"github.com/richardchch/Multinational-Database-Centralization/validators"
)

// Spec is the declarative rule set for one entity.
type Spec struct {
	Entity string
	Steps  []Step
	// Quality, when set, is evaluated on the cleaned table; violations become warnings.
	Quality *validators.DataQualityValidator
}

// StepStat records the row count after a step.
type StepStat struct {
	Name string
	Rows int
}

// Report describes one Clean call.
type Report struct {
	Entity   string
	Status   core.Status
	RowsIn   int
	RowsOut  int
	Steps    []StepStat
	Warnings []string
	Err      error
}

// Outcome converts the report to the tagged result used across stages.
func (r *Report) Outcome() core.Outcome {
	return core.Outcome{Status: r.Status, Rows: r.RowsOut, Err: r.Err}
}

func (r *Report) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// CleaningError is returned in Report.Err when a step aborts.
type CleaningError struct {
	Entity string
	Step   string
	Err    error
}

func (e *CleaningError) Error() string {
	return fmt.Sprintf("clean %s: step %q: %v", e.Entity, e.Step, e.Err)
}

func (e *CleaningError) Unwrap() error {
	return e.Err
}

// Cleaner runs entity specs.
type Cleaner struct {
	logger *zap.Logger
}

// Option configures a Cleaner.
type Option func(*Cleaner)

// WithLogger sets the logger used for progress messages.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cleaner) {
		c.logger = l
	}
}

// NewCleaner creates a Cleaner.
func NewCleaner(opts ...Option) *Cleaner {
	c := &Cleaner{logger: zap.L()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("cleaner")
	return c
}

// Clean applies spec to raw.
//
// An empty raw table is returned as is. If a step fails or panics, the table as
// of the last completed step is returned with StatusPartial and the error in the report.
func (c *Cleaner) Clean(ctx context.Context, spec Spec, raw *core.Table) (*core.Table, Report) {
	log := c.logger.With(zap.String("entity", spec.Entity))
	rep := Report{Entity: spec.Entity, RowsIn: raw.Len()}

	if raw.Empty() {
		log.Info("table is empty, nothing to clean")
		rep.Status = core.StatusEmptySource
		return raw, rep
	}

	current := raw
	if len(raw.Index) != len(raw.Rows) {
		current = raw.Clone()
		current.ResetIndex()
	}
	log.Info("cleaning started", zap.Int("rows", current.Len()), zap.Int("columns", len(current.Columns)))

	for _, step := range spec.Steps {
		next, err := runStep(ctx, step, current, &rep)
		if err != nil {
			rep.Err = &CleaningError{Entity: spec.Entity, Step: step.Name(), Err: err}
			rep.Status = core.StatusPartial
			log.Error("cleaning aborted, returning partially cleaned table",
				zap.String("step", step.Name()), zap.Error(err), zap.Int("rows", current.Len()))
			return c.finish(ctx, spec, current, &rep, log), rep
		}
		current = next
		rep.Steps = append(rep.Steps, StepStat{Name: step.Name(), Rows: current.Len()})
		log.Info("step applied", zap.String("step", step.Name()), zap.Int("rows", current.Len()))
	}

	if current.Empty() {
		rep.Status = core.StatusAllRejected
	} else {
		rep.Status = core.StatusOK
	}
	out := c.finish(ctx, spec, current, &rep, log)
	log.Info("cleaning finished",
		zap.Int("rows_in", rep.RowsIn), zap.Int("rows_out", rep.RowsOut), zap.Stringer("status", rep.Status))
	return out, rep
}

func (c *Cleaner) finish(ctx context.Context, spec Spec, t *core.Table, rep *Report, log *zap.Logger) *core.Table {
	out := t
	if !t.IndexContiguous() {
		out = t.Clone()
		out.ResetIndex()
	}
	rep.RowsOut = out.Len()

	if spec.Quality != nil && rep.Status != core.StatusPartial {
		for _, v := range spec.Quality.Evaluate(ctx, out) {
			rep.warn(v.String())
		}
	}
	for _, w := range rep.Warnings {
		log.Warn(w)
	}
	return out
}

func runStep(ctx context.Context, step Step, t *core.Table, rep *Report) (out *core.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	out, err = step.Apply(ctx, t, rep)
	if err == nil && out == nil {
		err = fmt.Errorf("step returned no table")
	}
	return out, err
}
