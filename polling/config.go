// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package polling

import (
	"errors"
	"fmt"
	"time"
)

// SleepDetectionConfig configures detection of host sleep/wake between polls.
// A host that slept may have power-cycled the chip, losing its
// configuration.
type SleepDetectionConfig struct {
	// TimeDiscontinuityThreshold is the minimum elapsed time beyond the
	// expected poll interval that indicates a sleep occurred. Default: 2 seconds
	TimeDiscontinuityThreshold time.Duration

	// Enabled enables sleep detection
	Enabled bool
}

// DefaultSleepDetectionConfig returns sensible defaults for sleep detection
func DefaultSleepDetectionConfig() SleepDetectionConfig {
	return SleepDetectionConfig{
		Enabled:                    true,
		TimeDiscontinuityThreshold: 2 * time.Second,
	}
}

// DetectSleep checks if the elapsed time since last poll indicates a system sleep.
// Returns true if elapsed time exceeds (pollInterval + TimeDiscontinuityThreshold).
func (cfg SleepDetectionConfig) DetectSleep(elapsed, pollInterval time.Duration) bool {
	if !cfg.Enabled {
		return false
	}
	return elapsed > pollInterval+cfg.TimeDiscontinuityThreshold
}

// Config holds polling configuration options
type Config struct {
	// PollInterval is the pause between receive polls
	PollInterval time.Duration
	// LinkCheckInterval is how often the PHY link is read when a link
	// monitor is set. Zero disables link checks.
	LinkCheckInterval time.Duration
	// BufferSize is the receive buffer size; longer datagrams are truncated
	BufferSize int
	// MaxBatch bounds how many datagrams one poll drains
	MaxBatch int
	// SleepDetection configures host sleep/wake detection
	SleepDetection SleepDetectionConfig
}

// DefaultConfig returns the default polling configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval:      10 * time.Millisecond,
		LinkCheckInterval: time.Second,
		BufferSize:        2048,
		MaxBatch:          16,
		SleepDetection:    DefaultSleepDetectionConfig(),
	}
}

// Validate checks the configuration for impossible values.
func (c *Config) Validate() error {
	var errs []error
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval))
	}
	if c.LinkCheckInterval < 0 {
		errs = append(errs, fmt.Errorf("link check interval must not be negative, got %s", c.LinkCheckInterval))
	}
	if c.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("buffer size must be positive, got %d", c.BufferSize))
	}
	if c.MaxBatch <= 0 {
		errs = append(errs, fmt.Errorf("max batch must be positive, got %d", c.MaxBatch))
	}
	return errors.Join(errs...)
}
