package petal

import (
	"petalflow/pkg/bitmask"
	"petalflow/pkg/prng"
)

// sampleDropout re-samples mask so that exactly floor(ratio*L) bits are set
// ("dropped"), per spec: sample the smaller side (drop set directly when
// ratio<=0.5, keep set then invert when ratio>=0.5) so expected work stays
// bounded by L/2 regardless of ratio.
func sampleDropout(mask *bitmask.BitMask, ratio float32, rng *prng.PRNG) error {
	l := mask.Len()
	mask.ClearAll()
	if ratio <= 0 {
		return nil
	}

	k := int(ratio * float32(l))
	if k >= l {
		for i := 0; i < l; i++ {
			if err := mask.Set(i); err != nil {
				return err
			}
		}
		return nil
	}

	if ratio <= 0.5 {
		return sampleWithoutReplacement(mask, k, rng)
	}

	keep := l - k
	if err := sampleWithoutReplacement(mask, keep, rng); err != nil {
		return err
	}
	mask.Not()
	return nil
}

// sampleWithoutReplacement sets exactly k unique bits in mask (assumed
// already all-clear), drawing indices uniformly and re-drawing on a
// collision.
func sampleWithoutReplacement(mask *bitmask.BitMask, k int, rng *prng.PRNG) error {
	l := mask.Len()
	count := 0
	for count < k {
		idx := int(rng.DrawUint32() % uint32(l))
		set, err := mask.Get(idx)
		if err != nil {
			return err
		}
		if set {
			continue
		}
		if err := mask.Set(idx); err != nil {
			return err
		}
		count++
	}
	return nil
}
