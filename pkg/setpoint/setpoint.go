// Package setpoint produces the sequences of field set-points a batch
// session transmits.
package setpoint

import "github.com/norasector/fluxvault/pkg/fluxvault"

// DemoTriple is the fixed field vector used for bench checks of the link.
var DemoTriple = fluxvault.Triple{X: 123.456, Y: 78.910, Z: 11.1213}

// Constant returns n copies of t.
func Constant(t fluxvault.Triple, n int) []fluxvault.Triple {
	if n <= 0 {
		return nil
	}
	out := make([]fluxvault.Triple, n)
	for i := range out {
		out[i] = t
	}
	return out
}
