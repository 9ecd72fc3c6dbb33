package ruleflow_test

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruleflow/ruleflow"
)

type bankingData struct {
	IBAN string
}

type customer struct {
	Name                   string
	Age                    int
	BankingDataPerContract map[string]bankingData
	PayingThroughSEPA      map[string]bool
}

// byContractID expands the per-contract maps into entries sorted by contract
// id, each labeled with the id it belongs to.
func byContractID(v any) []ruleflow.Item {
	switch m := v.(type) {
	case map[string]bankingData:
		keys := sortedKeys(m)
		items := make([]ruleflow.Item, len(keys))
		for i, k := range keys {
			items[i] = ruleflow.Item{Value: m[k], Label: "[contract_id=" + k + "]"}
		}
		return items
	case map[string]bool:
		keys := sortedKeys(m)
		items := make([]ruleflow.Item, len(keys))
		for i, k := range keys {
			items[i] = ruleflow.Item{Value: m[k], Label: "[contract_id=" + k + "]"}
		}
		return items
	default:
		return nil
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// checkIBAN requires an IBAN for customers paying through SEPA and verifies
// its rough shape: two letters followed by digits.
func checkIBAN(ctx context.Context, args *ruleflow.Args) error {
	sepa, _ := args.Value("sepa_payer")
	if paying, ok := sepa.(bool); !ok || !paying {
		return nil
	}
	ibanArg, err := ruleflow.Arg(ctx, "iban")
	if err != nil {
		return err
	}
	iban, ok := ibanArg.Value.(string)
	if !ok || !ibanArg.Provided {
		return ruleflow.Failf("%s is required for sepa payers", ibanArg.Label)
	}
	if !validIBAN(iban) {
		return ruleflow.Failf("%s is not a valid IBAN", ibanArg.Label)
	}
	return nil
}

func validIBAN(iban string) bool {
	if len(iban) < 4 {
		return false
	}
	for _, r := range iban[:2] {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	for _, r := range iban[2:] {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func ibanRule(t *testing.T) *ruleflow.Rule {
	t.Helper()
	rule, err := ruleflow.NewRule("check_iban", checkIBAN, []ruleflow.Param{
		ruleflow.Required("sepa_payer"),
		ruleflow.Optional("iban", nil),
	})
	require.NoError(t, err)
	return rule
}

func ibanBinding(t *testing.T) ruleflow.Binding {
	t.Helper()
	binding, err := ruleflow.NewParallelBinding(ibanRule(t), map[string]*ruleflow.Query{
		"iban":       ruleflow.NewQuery().Path("BankingDataPerContract").Iter(byContractID).Path("IBAN"),
		"sepa_payer": ruleflow.NewQuery().Path("PayingThroughSEPA").Iter(byContractID),
	})
	require.NoError(t, err)
	return binding
}

func goodCustomer(name string) *customer {
	return &customer{
		Name: name,
		Age:  37,
		BankingDataPerContract: map[string]bankingData{
			"contract_1": {IBAN: "DE52940594210000082271"},
		},
		PayingThroughSEPA: map[string]bool{"contract_1": true},
	}
}

func TestEngine_NoBindings(t *testing.T) {
	t.Parallel()

	engine := ruleflow.NewEngine[*customer]()
	record := goodCustomer("Nobody Checked")

	result, err := engine.Validate(context.Background(), record)
	require.NoError(t, err)

	assert.Equal(t, []*customer{record}, result.SucceededRecords())
	assert.Empty(t, result.RecordErrors())
	assert.Empty(t, result.RecordWarnings())
	assert.Equal(t, 1, result.Total())
}

func TestEngine_Register(t *testing.T) {
	t.Parallel()

	engine := ruleflow.NewEngine[*customer]()

	require.Error(t, engine.Register(nil))

	binding := ibanBinding(t)
	require.NoError(t, engine.Register(binding))
	assert.Len(t, engine.Bindings(), 1)

	err := engine.Register(ibanBinding(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ruleflow.ErrDuplicateBinding)
}

func TestEngine_EndToEndBankingContracts(t *testing.T) {
	t.Parallel()

	engine := ruleflow.NewEngine[*customer]()
	require.NoError(t, engine.Register(ibanBinding(t)))

	flawed := &customer{
		Name: "John Doe",
		Age:  42,
		BankingDataPerContract: map[string]bankingData{
			"contract_1": {IBAN: "DE52940594210000082271"},
			"contract_2": {IBAN: "DEA9370400440532013000"},
			"contract_3": {IBAN: "DE89370400440532013001"},
		},
		PayingThroughSEPA: map[string]bool{
			"contract_1": true,
			"contract_2": true,
			"contract_3": false,
		},
	}
	records := []*customer{goodCustomer("Alice"), flawed, goodCustomer("Bob")}

	result, err := engine.Validate(context.Background(), records...)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total())
	assert.Equal(t, 1, result.NumFails())
	assert.Equal(t, 2, result.NumSucceeds())
	require.Equal(t, 1, result.NumErrorsTotal())

	failureMsg := result.AllErrors()[0].Error()
	assert.Contains(t, failureMsg, "contract_2")
	assert.Contains(t, failureMsg, "check_iban")

	failures, failed := result.RecordErrors()[flawed]
	require.True(t, failed)
	require.Len(t, failures, 1)
	assert.Equal(t, "check_iban", failures[0].RuleName)
}

func TestEngine_MissingRequiredPathRecordsOneFailure(t *testing.T) {
	t.Parallel()

	var invoked atomic.Int32
	rule, err := ruleflow.NewRule("check_name", func(_ context.Context, _ *ruleflow.Args) error {
		invoked.Add(1)
		return nil
	}, []ruleflow.Param{ruleflow.Required("name")})
	require.NoError(t, err)

	binding, err := ruleflow.NewPathBinding(rule, map[string]string{"name": "NoSuchField"})
	require.NoError(t, err)

	engine := ruleflow.NewEngine[*customer]()
	require.NoError(t, engine.Register(binding))

	result, err := engine.Validate(context.Background(), goodCustomer("Eve"))
	require.NoError(t, err)

	assert.Equal(t, int32(0), invoked.Load())
	require.Equal(t, 1, result.NumErrorsTotal())
	assert.Contains(t, result.AllErrors()[0].Detail, "value not provided")
}

func TestEngine_StableFailureIDs(t *testing.T) {
	t.Parallel()

	alwaysFails, err := ruleflow.NewRule("always_fails", func(_ context.Context, _ *ruleflow.Args) error {
		return ruleflow.Failf("nope")
	}, []ruleflow.Param{ruleflow.Required("name")})
	require.NoError(t, err)
	failsElsewhere, err := ruleflow.NewRule("fails_elsewhere", func(_ context.Context, _ *ruleflow.Args) error {
		return ruleflow.Failf("also nope")
	}, []ruleflow.Param{ruleflow.Required("name")})
	require.NoError(t, err)

	bindingA, err := ruleflow.NewPathBinding(alwaysFails, map[string]string{"name": "Name"})
	require.NoError(t, err)
	bindingB, err := ruleflow.NewPathBinding(failsElsewhere, map[string]string{"name": "Name"})
	require.NoError(t, err)

	engine := ruleflow.NewEngine[*customer]()
	require.NoError(t, engine.Register(bindingA))
	require.NoError(t, engine.Register(bindingB))

	result, err := engine.Validate(context.Background(), goodCustomer("Ann"), goodCustomer("Ben"))
	require.NoError(t, err)
	require.Equal(t, 4, result.NumErrorsTotal())

	perID := result.NumErrorsPerID()
	// One site per rule; each site fired once per record.
	require.Len(t, perID, 2)
	for id, count := range perID {
		assert.Equal(t, 2, count, "id %d", id)
	}
}

func TestEngine_CustomFailureID(t *testing.T) {
	t.Parallel()

	rule, err := ruleflow.NewRule("custom_id", func(_ context.Context, _ *ruleflow.Args) error {
		return ruleflow.FailWithID(4_242_424, "handpicked")
	}, []ruleflow.Param{ruleflow.Required("name")})
	require.NoError(t, err)
	binding, err := ruleflow.NewPathBinding(rule, map[string]string{"name": "Name"})
	require.NoError(t, err)

	engine := ruleflow.NewEngine[*customer]()
	require.NoError(t, engine.Register(binding))

	result, err := engine.Validate(context.Background(), goodCustomer("Cid"))
	require.NoError(t, err)
	require.Equal(t, 1, result.NumErrorsTotal())
	assert.Equal(t, 4_242_424, result.AllErrors()[0].ID)
}

func TestEngine_Timeout(t *testing.T) {
	t.Parallel()

	slow, err := ruleflow.NewRule("slow_rule", func(ctx context.Context, _ *ruleflow.Args) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, []ruleflow.Param{ruleflow.Required("name")}, ruleflow.WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	fast, err := ruleflow.NewRule("fast_rule", func(_ context.Context, _ *ruleflow.Args) error {
		return nil
	}, []ruleflow.Param{ruleflow.Required("name")})
	require.NoError(t, err)

	slowBinding, err := ruleflow.NewPathBinding(slow, map[string]string{"name": "Name"})
	require.NoError(t, err)
	fastBinding, err := ruleflow.NewPathBinding(fast, map[string]string{"name": "Name"})
	require.NoError(t, err)

	engine := ruleflow.NewEngine[*customer]()
	require.NoError(t, engine.Register(slowBinding))
	require.NoError(t, engine.Register(fastBinding))

	result, err := engine.Validate(context.Background(), goodCustomer("Tim"))
	require.NoError(t, err)

	// The slow sibling timing out must not affect the fast one.
	require.Equal(t, 1, result.NumErrorsTotal())
	failure := result.AllErrors()[0]
	assert.True(t, failure.Timeout)
	assert.Contains(t, failure.Detail, "timeout (20ms) during execution")
	assert.Equal(t, "slow_rule", failure.RuleName)
}

func TestEngine_PanicInRuleIsCaptured(t *testing.T) {
	t.Parallel()

	rule, err := ruleflow.NewRule("panics", func(_ context.Context, _ *ruleflow.Args) error {
		panic("boom")
	}, []ruleflow.Param{ruleflow.Required("name")})
	require.NoError(t, err)
	binding, err := ruleflow.NewPathBinding(rule, map[string]string{"name": "Name"})
	require.NoError(t, err)

	engine := ruleflow.NewEngine[*customer]()
	require.NoError(t, engine.Register(binding))

	result, err := engine.Validate(context.Background(), goodCustomer("Pan"))
	require.NoError(t, err)
	require.Equal(t, 1, result.NumErrorsTotal())
	assert.Contains(t, result.AllErrors()[0].Detail, "boom")
}

func TestEngine_WarningMode(t *testing.T) {
	t.Parallel()

	rule, err := ruleflow.NewRule("warns", func(_ context.Context, _ *ruleflow.Args) error {
		return ruleflow.Failf("questionable but tolerable")
	}, []ruleflow.Param{ruleflow.Required("name")})
	require.NoError(t, err)
	binding, err := ruleflow.NewPathBinding(rule, map[string]string{"name": "Name"}, ruleflow.AsWarning())
	require.NoError(t, err)

	engine := ruleflow.NewEngine[*customer]()
	require.NoError(t, engine.Register(binding))

	record := goodCustomer("Wynn")
	result, err := engine.Validate(context.Background(), record)
	require.NoError(t, err)

	// Warnings never fail the record: it is succeeded and warned at once.
	assert.Equal(t, []*customer{record}, result.SucceededRecords())
	assert.Equal(t, 0, result.NumFails())
	assert.Equal(t, 1, result.NumWarned())
	assert.Equal(t, 1, result.NumWarningsTotal())
	assert.Equal(t, 0, result.NumErrorsTotal())
}

func TestEngine_ParallelLengthMismatchScopedToRecord(t *testing.T) {
	t.Parallel()

	engine := ruleflow.NewEngine[*customer]()
	require.NoError(t, engine.Register(ibanBinding(t)))

	lopsided := &customer{
		Name: "Lop Sided",
		BankingDataPerContract: map[string]bankingData{
			"contract_1": {IBAN: "DE52940594210000082271"},
			"contract_2": {IBAN: "DE89370400440532013001"},
		},
		PayingThroughSEPA: map[string]bool{
			"contract_1": true,
			"contract_2": true,
			"contract_3": false,
		},
	}

	result, err := engine.Validate(context.Background(), lopsided, goodCustomer("Solid"))
	require.NoError(t, err)

	// The mismatch fails the lopsided record only.
	assert.Equal(t, 1, result.NumFails())
	assert.Equal(t, 1, result.NumSucceeds())
	failures := result.RecordErrors()[lopsided]
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Cause, ruleflow.ErrParallelLengths)
}

func TestEngine_DuplicateRecordsValidatedOnce(t *testing.T) {
	t.Parallel()

	var invoked atomic.Int32
	rule, err := ruleflow.NewRule("counts", func(_ context.Context, _ *ruleflow.Args) error {
		invoked.Add(1)
		return nil
	}, []ruleflow.Param{ruleflow.Required("name")})
	require.NoError(t, err)
	binding, err := ruleflow.NewPathBinding(rule, map[string]string{"name": "Name"})
	require.NoError(t, err)

	engine := ruleflow.NewEngine[*customer]()
	require.NoError(t, engine.Register(binding))

	record := goodCustomer("Dup")
	result, err := engine.Validate(context.Background(), record, record)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Total())
	assert.Equal(t, int32(1), invoked.Load())
}

func TestArg_OutsideRuleBody(t *testing.T) {
	t.Parallel()

	_, err := ruleflow.Arg(context.Background(), "anything")
	assert.ErrorIs(t, err, ruleflow.ErrNoCurrentInvocation)

	_, err = ruleflow.CurrentArgs(context.Background())
	assert.ErrorIs(t, err, ruleflow.ErrNoCurrentInvocation)
}

func TestArg_InsideRuleBody(t *testing.T) {
	t.Parallel()

	rule, err := ruleflow.NewRule("introspects", func(ctx context.Context, _ *ruleflow.Args) error {
		arg, err := ruleflow.Arg(ctx, "name")
		if err != nil {
			return err
		}
		if !arg.Provided || arg.Label != "Name" {
			return errors.New("unexpected argument metadata")
		}
		if _, err := ruleflow.Arg(ctx, "unknown"); err == nil {
			return errors.New("lookup of unprovided parameter must fail")
		}
		return nil
	}, []ruleflow.Param{ruleflow.Required("name")})
	require.NoError(t, err)

	binding, err := ruleflow.NewPathBinding(rule, map[string]string{"name": "Name"})
	require.NoError(t, err)

	engine := ruleflow.NewEngine[*customer]()
	require.NoError(t, engine.Register(binding))

	result, err := engine.Validate(context.Background(), goodCustomer("Ivy"))
	require.NoError(t, err)
	assert.Equal(t, 0, result.NumErrorsTotal(), "failures: %v", result.AllErrors())
}
