package pricing

import "time"

// ResolveDueDate returns explicit unchanged when given, otherwise the issue
// date plus the global payment terms when they are enabled. A nil result
// means the invoice has no due date.
func ResolveDueDate(issueDate time.Time, explicit *time.Time, settings Settings) *time.Time {
	if explicit != nil {
		due := *explicit
		return &due
	}
	if settings.UseGlobalPaymentTerms && settings.PaymentTermsDays > 0 {
		due := issueDate.AddDate(0, 0, settings.PaymentTermsDays)
		return &due
	}
	return nil
}
