// Printlink Core
// Copyright (c) 2026 The Printlink Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Printlink Core.
//
// Printlink Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Printlink Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Printlink Core.  If not, see <http://www.gnu.org/licenses/>.

// Package validation checks API request parameters using
// go-playground/validator with printer specific tags.
package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/printlink/printlink-core/pkg/gcode"
	"github.com/printlink/printlink-core/pkg/printer"
)

var (
	ErrMissingParams = errors.New("missing params")
	ErrInvalidParams = errors.New("invalid params")
)

const (
	maxLineLength   = 256
	maxSdNameLength = 64
)

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("gcode", validateGCode)
	_ = v.RegisterValidation("axes", validateAxes)
	_ = v.RegisterValidation("sdfile", validateSdFile)
	_ = v.RegisterValidation("rewrite", validateRewrite)

	return &Validator{validate: v}
}

// DefaultValidator is shared by the API handlers.
var DefaultValidator = NewValidator()

// Validate returns an *Error listing every failed field.
func (v *Validator) Validate(params any) error {
	return v.ValidateCtx(context.Background(), params)
}

func (v *Validator) ValidateCtx(ctx context.Context, params any) error {
	if err := v.validate.StructCtx(ctx, params); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewError(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidateAndUnmarshal decodes params into dest and validates it. Empty
// params are ErrMissingParams and undecodable params ErrInvalidParams.
func ValidateAndUnmarshal[T any](params json.RawMessage, dest *T) error {
	if len(params) == 0 {
		return ErrMissingParams
	}
	if err := json.Unmarshal(params, dest); err != nil {
		return ErrInvalidParams
	}
	return DefaultValidator.Validate(dest)
}

// ValidateOptional is ValidateAndUnmarshal for methods whose params may be
// left out entirely.
func ValidateOptional[T any](params json.RawMessage, dest *T) error {
	if len(params) == 0 || string(params) == "null" {
		return DefaultValidator.Validate(dest)
	}
	return ValidateAndUnmarshal(params, dest)
}

// validateGCode accepts one printable line with a command in it.
func validateGCode(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if len(val) > maxLineLength {
		return false
	}
	for _, r := range val {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return false
		}
	}
	return strings.TrimSpace(gcode.StripComment(val)) != ""
}

func validateAxes(fl validator.FieldLevel) bool {
	_, err := printer.ParseAxes(fl.Field().String())
	return err == nil
}

// validateSdFile accepts names firmware can take after M23/M30.
func validateSdFile(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" || len(val) > maxSdNameLength {
		return false
	}
	for _, r := range val {
		if r > unicode.MaxASCII || unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
		if r == ';' || r == '*' {
			return false
		}
	}
	return true
}

func validateRewrite(fl validator.FieldLevel) bool {
	_, err := gcode.ParseRewriteTable(fl.Field().String())
	return err == nil
}
