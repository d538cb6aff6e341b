package address

// Resolver holds the shipping and billing addresses being edited for one
// checkout. It is not safe for concurrent use.
type Resolver struct {
	shipping       Address
	billing        Address
	sameAsShipping bool
}

// NewResolver returns an empty resolver with sameAsShipping off.
func NewResolver() *Resolver {
	return &Resolver{}
}

// LoadProfile primes the resolver from stored profile data. sameAsShipping
// is set iff the two addresses are identical field by field, empty fields
// included.
func (r *Resolver) LoadProfile(shipping, billing Address) {
	r.shipping = shipping
	r.billing = billing
	r.sameAsShipping = shipping == billing
}

// SetSameAsShipping toggles the shortcut. Turning it on copies the current
// shipping address over billing once; later shipping edits are not
// propagated until the flag is set to true again.
func (r *Resolver) SetSameAsShipping(same bool) {
	r.sameAsShipping = same
	if same {
		r.billing = r.shipping
	}
}

// SetShipping replaces the shipping address.
func (r *Resolver) SetShipping(a Address) { r.shipping = a }

// SetBilling replaces the billing address.
func (r *Resolver) SetBilling(a Address) { r.billing = a }

// Shipping returns the shipping address as edited.
func (r *Resolver) Shipping() Address { return r.shipping }

// Billing returns the billing address as edited. It may be stale while
// sameAsShipping is on; use Resolve for submission.
func (r *Resolver) Billing() Address { return r.billing }

// SameAsShipping reports the current state of the shortcut.
func (r *Resolver) SameAsShipping() bool { return r.sameAsShipping }

// Resolve returns the addresses to submit. With sameAsShipping on, billing
// is the shipping address as it is now, whatever billing holds.
func (r *Resolver) Resolve() (shipping, billing Address, err error) {
	shipping = r.shipping
	billing = r.billing
	if r.sameAsShipping {
		billing = shipping
	}

	if err := shipping.Validate(Shipping); err != nil {
		return Address{}, Address{}, err
	}
	if !r.sameAsShipping {
		if err := billing.Validate(Billing); err != nil {
			return Address{}, Address{}, err
		}
	}
	return shipping, billing, nil
}
