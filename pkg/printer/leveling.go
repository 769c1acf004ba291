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

package printer

import (
	"errors"
	"math"

	"github.com/printlink/printlink-core/pkg/gcode"
)

var ErrDegenerateLeveling = errors.New("leveling points do not span a plane")

// PlaneLeveler compensates a tilted bed using the plane through three probed
// points. Each point is x, y and the measured bed height at that spot.
type PlaneLeveler struct {
	origin gcode.Vec3
	normal gcode.Vec3
}

func NewPlaneLeveler(points [][]float64) (*PlaneLeveler, error) {
	if len(points) != 3 {
		return nil, ErrDegenerateLeveling
	}
	var p [3]gcode.Vec3
	for i, pt := range points {
		if len(pt) != 3 {
			return nil, ErrDegenerateLeveling
		}
		p[i] = gcode.Vec3{X: pt[0], Y: pt[1], Z: pt[2]}
	}
	a := p[1].Sub(p[0])
	b := p[2].Sub(p[0])
	n := gcode.Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
	if math.Abs(n.Z) < 1e-9 {
		return nil, ErrDegenerateLeveling
	}
	return &PlaneLeveler{origin: p[0], normal: n}, nil
}

// HeightAt is the bed height under x, y.
func (l *PlaneLeveler) HeightAt(x, y float64) float64 {
	return l.origin.Z - (l.normal.X*(x-l.origin.X)+l.normal.Y*(y-l.origin.Y))/l.normal.Z
}

func (l *PlaneLeveler) Apply(p gcode.Vec3) gcode.Vec3 {
	p.Z += l.HeightAt(p.X, p.Y)
	return p
}
