package ruleflow

import (
	"sort"
	"sync"
)

// Result is the aggregated outcome of one Validate call. Every view is
// computed lazily on first access and cached: repeated calls return the
// identical value, and computing one view never mutates another.
type Result[D comparable] struct {
	records []D
	stores  map[D]*ErrorStore

	partitionOnce  sync.Once
	succeeded      []D
	recordErrors   map[D][]*FailureRecord
	recordWarnings map[D][]*FailureRecord

	errorsOnce sync.Once
	allErrors  []*FailureRecord

	warningsOnce sync.Once
	allWarnings  []*FailureRecord

	errorsPerIDOnce sync.Once
	errorsPerID     map[int]int

	warningsPerIDOnce sync.Once
	warningsPerID     map[int]int
}

func newResult[D comparable](records []D, stores map[D]*ErrorStore) *Result[D] {
	return &Result[D]{records: records, stores: stores}
}

func (r *Result[D]) partition() {
	r.partitionOnce.Do(func() {
		r.succeeded = []D{}
		r.recordErrors = make(map[D][]*FailureRecord)
		r.recordWarnings = make(map[D][]*FailureRecord)
		for _, record := range r.records {
			store := r.stores[record]
			if store.HasWarnings() {
				r.recordWarnings[record] = store.Warnings()
			}
			if store.HasErrors() {
				r.recordErrors[record] = store.Errors()
			} else {
				r.succeeded = append(r.succeeded, record)
			}
		}
	})
}

// SucceededRecords returns the records validated without any error. A record
// with only warnings still counts as succeeded.
func (r *Result[D]) SucceededRecords() []D {
	r.partition()
	return r.succeeded
}

// RecordErrors maps each failed record to its error-mode failures.
func (r *Result[D]) RecordErrors() map[D][]*FailureRecord {
	r.partition()
	return r.recordErrors
}

// RecordWarnings maps each warned record to its warning-mode failures.
func (r *Result[D]) RecordWarnings() map[D][]*FailureRecord {
	r.partition()
	return r.recordWarnings
}

// Total returns the number of validated records.
func (r *Result[D]) Total() int { return len(r.records) }

// NumSucceeds returns the number of records without errors.
func (r *Result[D]) NumSucceeds() int { return len(r.SucceededRecords()) }

// NumFails returns the number of records with at least one error.
func (r *Result[D]) NumFails() int { return len(r.RecordErrors()) }

// NumWarned returns the number of records with at least one warning.
func (r *Result[D]) NumWarned() int { return len(r.RecordWarnings()) }

// AllErrors returns every error-mode failure across all records, sorted by
// numeric id so equal ids group together.
func (r *Result[D]) AllErrors() []*FailureRecord {
	r.errorsOnce.Do(func() {
		r.allErrors = sortedByID(r.RecordErrors(), r.records)
	})
	return r.allErrors
}

// AllWarnings returns every warning-mode failure across all records, sorted
// by numeric id so equal ids group together.
func (r *Result[D]) AllWarnings() []*FailureRecord {
	r.warningsOnce.Do(func() {
		r.allWarnings = sortedByID(r.RecordWarnings(), r.records)
	})
	return r.allWarnings
}

// NumErrorsTotal returns the number of errors across all records.
func (r *Result[D]) NumErrorsTotal() int { return len(r.AllErrors()) }

// NumWarningsTotal returns the number of warnings across all records.
func (r *Result[D]) NumWarningsTotal() int { return len(r.AllWarnings()) }

// NumErrorsPerID counts, per error id, how often it occurred across all
// records.
func (r *Result[D]) NumErrorsPerID() map[int]int {
	r.errorsPerIDOnce.Do(func() {
		r.errorsPerID = countByID(r.AllErrors())
	})
	return r.errorsPerID
}

// NumWarningsPerID counts, per error id, how often it was raised as a
// warning across all records.
func (r *Result[D]) NumWarningsPerID() map[int]int {
	r.warningsPerIDOnce.Do(func() {
		r.warningsPerID = countByID(r.AllWarnings())
	})
	return r.warningsPerID
}

func sortedByID[D comparable](byRecord map[D][]*FailureRecord, order []D) []*FailureRecord {
	all := []*FailureRecord{}
	for _, record := range order {
		all = append(all, byRecord[record]...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

func countByID(failures []*FailureRecord) map[int]int {
	counts := make(map[int]int, len(failures))
	for _, f := range failures {
		counts[f.ID]++
	}
	return counts
}
