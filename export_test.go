// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package outdev

func ValueToState(d *OutputDevice, v bool) Level {
	return d.valueToState(v)
}

func StateToValue(d *OutputDevice, l Level) bool {
	return d.stateToValue(l)
}
