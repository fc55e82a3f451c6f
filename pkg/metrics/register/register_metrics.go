// Package register pulls in the metric collectors that should be
// registered by side effect when linked into a binary.
package register

import (
	// Pull in the idle memory working-set collector.
	_ "github.com/OpenVZ/vcmmd/pkg/idlemem"
)
