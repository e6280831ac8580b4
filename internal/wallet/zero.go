package wallet

// Zero overwrites b with zeros.
func Zero(b []byte) {
	clear(b)
}

// ZeroIndices overwrites a mnemonic index sequence with zeros.
func ZeroIndices(idx []uint16) {
	clear(idx)
}

// ZeroAll wipes every buffer in bufs. It is meant to be deferred by
// functions that hold several transient secrets at once.
func ZeroAll(bufs ...[]byte) {
	for _, b := range bufs {
		clear(b)
	}
}
