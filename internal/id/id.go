// Copyright 2026 The Scriptora Authors
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

// Package id generates entity identifiers.
package id

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// NewUUIDv7 returns a time-ordered UUID string for newly created entities.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Deterministic derives a stable identifier from business keys by hashing
// their colon-joined concatenation. The same keys always produce the same id,
// which is what makes duplicate invitations and requests collide instead of
// piling up. Key order is load-bearing; callers must not reorder.
func Deterministic(prefix string, keys ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(keys, ":")))
	return prefix + ":" + hex.EncodeToString(sum[:])
}
