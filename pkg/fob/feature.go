package fob

import (
	"crypto/subtle"

	"github.com/fobsec/keyfob/pkg/securechannel"
)

// handleEnableFeature unlocks one feature bit from a sealed package. The
// package is validated against the stored PIN hash; any failure answers
// with the same NACK.
func (d *Device) handleEnableFeature(payload []byte) {
	if d.rec.Paired != PairedStatePaired ||
		len(payload) != 1+securechannel.FeatureBlobSize {
		d.nackHost()
		return
	}

	_, pinHash, feature, err := securechannel.OpenFeature(d.config.FeatureKey[:], payload[1:])
	if err != nil {
		d.nackHost()
		return
	}
	if subtle.ConstantTimeCompare(pinHash[:], d.rec.PINHash[:]) != 1 {
		d.nackHost()
		return
	}
	if feature >= securechannel.NumFeatures {
		d.nackHost()
		return
	}

	next := d.rec
	next.Features |= 1 << feature
	if next.Features == d.rec.Features {
		// Already enabled; the package is valid, so acknowledge.
		d.ackHost()
		return
	}
	if err := d.config.Storage.Save(&next); err != nil {
		d.log.Errorf("feature enable: persist failed: %v", err)
		d.nackHost()
		return
	}
	d.rec = next

	d.log.Infof("feature %d enabled", feature)
	d.ackHost()
}
