package usbsvc

// Observer receives device lifecycle callbacks from the transport loop.
// Callbacks are fire-and-forget and must not block: the transport invokes
// them synchronously as it detects each bus event.
type Observer interface {
	Reset()
	Addressed(addr uint8)
	Configured(configured bool)
	Suspended(suspended bool)
	Disabled()
}

// MultiObserver fans lifecycle callbacks out to several observers in
// order.
func MultiObserver(observers ...Observer) Observer {
	return multiObserver(observers)
}

type multiObserver []Observer

func (m multiObserver) Reset() {
	for _, o := range m {
		o.Reset()
	}
}

func (m multiObserver) Addressed(addr uint8) {
	for _, o := range m {
		o.Addressed(addr)
	}
}

func (m multiObserver) Configured(configured bool) {
	for _, o := range m {
		o.Configured(configured)
	}
}

func (m multiObserver) Suspended(suspended bool) {
	for _, o := range m {
		o.Suspended(suspended)
	}
}

func (m multiObserver) Disabled() {
	for _, o := range m {
		o.Disabled()
	}
}
