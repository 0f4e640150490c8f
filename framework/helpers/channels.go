package helpers

// NonBlockingSend is a shortcut for using select to do a non-blocking send. It returns
// true on success or false if the channel was full.
func NonBlockingSend[V any](ch chan<- V, value V) bool {
	select {
	case ch <- value:
		return true
	default:
		return false
	}
}
