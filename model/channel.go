package model

import (
	"time"
)

// Channel models transmission delay between two communication devices as a
// function of payload size and a fixed bandwidth. Beyond the listener wired
// in at model-assembly time it carries no state, so one channel is safely
// shared by the sender and receiver of a link.
type Channel struct {
	bandwidth float64 // bytes per second
	listener  *CommunicationDevice
}

// NewChannel constructs a channel with the given bandwidth in bytes per
// second. Non-positive bandwidths are treated as 1 byte/s rather than
// producing infinite delays.
func NewChannel(bandwidthBytesPerSec float64) *Channel {
	if bandwidthBytesPerSec <= 0 {
		bandwidthBytesPerSec = 1
	}
	return &Channel{bandwidth: bandwidthBytesPerSec}
}

// Bandwidth returns the channel bandwidth in bytes per second.
func (c *Channel) Bandwidth() float64 { return c.bandwidth }

// Delay returns the transfer time for a payload: size divided by bandwidth.
// The delay is non-decreasing in payload size and non-increasing in
// bandwidth.
func (c *Channel) Delay(p Payload) time.Duration {
	size := p.SizeBytes()
	if size < 0 {
		size = 0
	}
	return time.Duration(size / c.bandwidth * float64(time.Second))
}

func (c *Channel) setListener(d *CommunicationDevice) { c.listener = d }
