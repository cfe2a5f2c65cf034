package model

// Battery is a finite charge store. Charge only ever decreases; depletion is
// an observable condition, not an error. Whether a depleted battery stops a
// device is a modelling decision encoded in task behaviour, not an implicit
// engine rule.
type Battery struct {
	name      string
	potential float64 // volts
	charge    float64 // coulombs
}

// NewBattery constructs a battery with the given potential in volts and
// initial charge in coulombs.
func NewBattery(name string, potentialVolts, chargeCoulombs float64) *Battery {
	if chargeCoulombs < 0 {
		chargeCoulombs = 0
	}
	return &Battery{name: name, potential: potentialVolts, charge: chargeCoulombs}
}

// Name returns the battery name.
func (b *Battery) Name() string { return b.name }

// Potential returns the battery potential in volts.
func (b *Battery) Potential() float64 { return b.potential }

// Charge returns the remaining charge in coulombs.
func (b *Battery) Charge() float64 { return b.charge }

// Depleted reports whether the battery has no charge left.
func (b *Battery) Depleted() bool { return b.charge <= 0 }

// Drain removes the charge equivalent of the given energy in joules
// (energy / potential), clamping at zero. It returns the charge actually
// removed in coulombs.
func (b *Battery) Drain(energyJoules float64) float64 {
	if energyJoules <= 0 || b.potential <= 0 {
		return 0
	}
	dq := energyJoules / b.potential
	if dq > b.charge {
		dq = b.charge
	}
	b.charge -= dq
	return dq
}
