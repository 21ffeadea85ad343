package errortypes

// Timeout should be used when a bid fetch did not complete before the configured timeout elapsed.
type Timeout struct {
	Message string
}

func (err *Timeout) Error() string {
	return err.Message
}

func (err *Timeout) Code() int {
	return TimeoutErrorCode
}

func (err *Timeout) Severity() Severity {
	return SeverityFatal
}

// InvalidConfig should be used when a caller supplies slot configuration which cannot be applied,
// such as an empty config id, an empty size set or a non-positive refresh interval.
//
// The configuration the error refers to is always left unchanged.
type InvalidConfig struct {
	Message string
}

func (err *InvalidConfig) Error() string {
	return err.Message
}

func (err *InvalidConfig) Code() int {
	return InvalidConfigErrorCode
}

func (err *InvalidConfig) Severity() Severity {
	return SeverityFatal
}

// InvalidState should be used when a lifecycle operation is requested from a state which does not
// allow it, e.g. anything after an ad unit was destroyed or Resume on a running scheduler.
type InvalidState struct {
	Message string
}

func (err *InvalidState) Error() string {
	return err.Message
}

func (err *InvalidState) Code() int {
	return InvalidStateErrorCode
}

func (err *InvalidState) Severity() Severity {
	return SeverityFatal
}

// FetchFailure is delivered through the result callback when the bid loader could not produce a
// bid response. It never halts the refresh schedule.
type FetchFailure struct {
	Message string
}

func (err *FetchFailure) Error() string {
	return err.Message
}

func (err *FetchFailure) Code() int {
	return FetchFailureErrorCode
}

func (err *FetchFailure) Severity() Severity {
	return SeverityFatal
}

// NoBids is a fetch outcome where the auction completed but returned no usable bid.
type NoBids struct {
	Message string
}

func (err *NoBids) Error() string {
	return err.Message
}

func (err *NoBids) Code() int {
	return NoBidsErrorCode
}

func (err *NoBids) Severity() Severity {
	return SeverityFatal
}

// VisibilityUnavailable is reported once when an ad unit could not subscribe to screen state.
// The unit keeps refreshing as if the screen was always on.
type VisibilityUnavailable struct {
	Message string
}

func (err *VisibilityUnavailable) Error() string {
	return err.Message
}

func (err *VisibilityUnavailable) Code() int {
	return VisibilityUnavailableWarningCode
}

func (err *VisibilityUnavailable) Severity() Severity {
	return SeverityWarning
}
