package dedupmodel

import "errors"

// ErrClusterFull is returned by Cluster.AddMember when the member cap
// has already been reached. Callers translate this into the
// capacity-race fallthrough to the next ranked candidate.
var ErrClusterFull = errors.New("dedupmodel: cluster member limit reached")
