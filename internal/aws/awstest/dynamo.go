// Package awstest provides in-memory fakes of the AWS clients for unit tests.
package awstest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Dynamo is an in-memory DynamoDB supporting the small expression grammar
// the stores use:
//
//	conditions/filters: clauses joined by " AND ", each one of
//	  attribute_exists(p), attribute_not_exists(p), p = :v, p <> :v
//	updates: "SET p = :v, q = :w"
//
// Paths may be #aliases from ExpressionAttributeNames.
type Dynamo struct {
	mu     sync.Mutex
	tables map[string]*table

	// Errs makes the named operation ("PutItem", "Query", ...) fail.
	Errs map[string]error
	// Calls counts invocations per operation.
	Calls map[string]int
}

type table struct {
	pk, sk string
	items  map[string]map[string]types.AttributeValue
}

// NewDynamo returns an empty fake with no tables.
func NewDynamo() *Dynamo {
	return &Dynamo{
		tables: map[string]*table{},
		Errs:   map[string]error{},
		Calls:  map[string]int{},
	}
}

// CreateTable registers a table with partition key pk and optional sort key sk.
func (d *Dynamo) CreateTable(name, pk, sk string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[name] = &table{pk: pk, sk: sk, items: map[string]map[string]types.AttributeValue{}}
}

// Seed stores item directly, bypassing conditions.
func (d *Dynamo) Seed(tableName string, item map[string]types.AttributeValue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.mustTable(tableName)
	t.items[t.keyOf(item)] = copyItem(item)
}

// Items returns a snapshot of every item in tableName.
func (d *Dynamo) Items(tableName string) []map[string]types.AttributeValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.mustTable(tableName)
	out := make([]map[string]types.AttributeValue, 0, len(t.items))
	for _, k := range sortedKeys(t.items) {
		out = append(out, copyItem(t.items[k]))
	}
	return out
}

// Item returns the item with the given key attributes, or nil.
func (d *Dynamo) Item(tableName string, key map[string]types.AttributeValue) map[string]types.AttributeValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.mustTable(tableName)
	if it, ok := t.items[t.keyOf(key)]; ok {
		return copyItem(it)
	}
	return nil
}

func (d *Dynamo) enter(op string) error {
	d.Calls[op]++
	if err, ok := d.Errs[op]; ok && err != nil {
		return err
	}
	return nil
}

func (d *Dynamo) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("PutItem"); err != nil {
		return nil, err
	}
	t, err := d.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k := t.keyOf(in.Item)
	ok, err := evalCondition(sdkaws.ToString(in.ConditionExpression), t.items[k], in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed()
	}
	t.items[k] = copyItem(in.Item)
	return &dyn.PutItemOutput{}, nil
}

func (d *Dynamo) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("GetItem"); err != nil {
		return nil, err
	}
	t, err := d.table(in.TableName)
	if err != nil {
		return nil, err
	}
	it, ok := t.items[t.keyOf(in.Key)]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(it)}, nil
}

func (d *Dynamo) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("UpdateItem"); err != nil {
		return nil, err
	}
	t, err := d.table(in.TableName)
	if err != nil {
		return nil, err
	}
	updated, err := applyUpdate(t, in.Key, sdkaws.ToString(in.ConditionExpression), sdkaws.ToString(in.UpdateExpression), in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	out := &dyn.UpdateItemOutput{}
	if in.ReturnValues == types.ReturnValueAllNew || in.ReturnValues == types.ReturnValueUpdatedNew {
		out.Attributes = copyItem(updated)
	}
	return out, nil
}

func (d *Dynamo) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("TransactWriteItems"); err != nil {
		return nil, err
	}

	// first pass: every condition must hold before anything is written
	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, it := range in.TransactItems {
		var (
			tbl   *string
			key   map[string]types.AttributeValue
			cond  *string
			names map[string]string
			vals  map[string]types.AttributeValue
		)
		switch {
		case it.Put != nil:
			tbl, cond, names, vals = it.Put.TableName, it.Put.ConditionExpression, it.Put.ExpressionAttributeNames, it.Put.ExpressionAttributeValues
			key = it.Put.Item
		case it.Update != nil:
			tbl, cond, names, vals = it.Update.TableName, it.Update.ConditionExpression, it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues
			key = it.Update.Key
		default:
			return nil, errors.New("awstest: only Put and Update are supported in transactions")
		}
		t, err := d.table(tbl)
		if err != nil {
			return nil, err
		}
		ok, err := evalCondition(sdkaws.ToString(cond), t.items[t.keyOf(key)], names, vals)
		if err != nil {
			return nil, err
		}
		code := "None"
		if !ok {
			code = "ConditionalCheckFailed"
			failed = true
		}
		reasons[i] = types.CancellationReason{Code: sdkaws.String(code)}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             sdkaws.String("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}

	for _, it := range in.TransactItems {
		if it.Put != nil {
			t, _ := d.table(it.Put.TableName)
			t.items[t.keyOf(it.Put.Item)] = copyItem(it.Put.Item)
			continue
		}
		t, _ := d.table(it.Update.TableName)
		if _, err := applyUpdate(t, it.Update.Key, "", sdkaws.ToString(it.Update.UpdateExpression), it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues); err != nil {
			return nil, err
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (d *Dynamo) BatchGetItem(ctx context.Context, in *dyn.BatchGetItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchGetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("BatchGetItem"); err != nil {
		return nil, err
	}
	out := &dyn.BatchGetItemOutput{Responses: map[string][]map[string]types.AttributeValue{}}
	for name, ka := range in.RequestItems {
		t, err := d.table(sdkaws.String(name))
		if err != nil {
			return nil, err
		}
		if len(ka.Keys) > 100 {
			return nil, fmt.Errorf("awstest: too many keys in BatchGetItem: %d", len(ka.Keys))
		}
		for _, k := range ka.Keys {
			if it, ok := t.items[t.keyOf(k)]; ok {
				out.Responses[name] = append(out.Responses[name], copyItem(it))
			}
		}
	}
	return out, nil
}

func (d *Dynamo) Query(ctx context.Context, in *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Query"); err != nil {
		return nil, err
	}
	t, err := d.table(in.TableName)
	if err != nil {
		return nil, err
	}
	matched, err := t.filter(sdkaws.ToString(in.KeyConditionExpression), in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if t.sk != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			return scalar(matched[i][t.sk]) < scalar(matched[j][t.sk])
		})
	}
	if in.ScanIndexForward != nil && !*in.ScanIndexForward {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}
	matched, err = filterItems(matched, sdkaws.ToString(in.FilterExpression), in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	return &dyn.QueryOutput{Items: matched, Count: int32(len(matched))}, nil
}

func (d *Dynamo) Scan(ctx context.Context, in *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Scan"); err != nil {
		return nil, err
	}
	t, err := d.table(in.TableName)
	if err != nil {
		return nil, err
	}
	matched, err := t.filter(sdkaws.ToString(in.FilterExpression), in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	return &dyn.ScanOutput{Items: matched, Count: int32(len(matched))}, nil
}

func (d *Dynamo) table(name *string) (*table, error) {
	t, ok := d.tables[sdkaws.ToString(name)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: sdkaws.String("table not found: " + sdkaws.ToString(name))}
	}
	return t, nil
}

func (d *Dynamo) mustTable(name string) *table {
	t, ok := d.tables[name]
	if !ok {
		panic("awstest: unknown table " + name)
	}
	return t
}

func (t *table) keyOf(item map[string]types.AttributeValue) string {
	k := scalar(item[t.pk])
	if t.sk != "" {
		k += "\x00" + scalar(item[t.sk])
	}
	return k
}

func (t *table) filter(expr string, names map[string]string, vals map[string]types.AttributeValue) ([]map[string]types.AttributeValue, error) {
	all := make([]map[string]types.AttributeValue, 0, len(t.items))
	for _, k := range sortedKeys(t.items) {
		all = append(all, t.items[k])
	}
	return filterItems(all, expr, names, vals)
}

func filterItems(items []map[string]types.AttributeValue, expr string, names map[string]string, vals map[string]types.AttributeValue) ([]map[string]types.AttributeValue, error) {
	out := make([]map[string]types.AttributeValue, 0, len(items))
	for _, it := range items {
		ok, err := evalCondition(expr, it, names, vals)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, copyItem(it))
		}
	}
	return out, nil
}

func applyUpdate(t *table, key map[string]types.AttributeValue, cond, update string, names map[string]string, vals map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	k := t.keyOf(key)
	current := t.items[k]
	ok, err := evalCondition(cond, current, names, vals)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed()
	}

	next := copyItem(current)
	if next == nil {
		next = copyItem(key)
	}
	update = strings.TrimSpace(update)
	if !strings.HasPrefix(update, "SET ") {
		return nil, fmt.Errorf("awstest: unsupported update expression %q", update)
	}
	for _, assign := range strings.Split(strings.TrimPrefix(update, "SET "), ",") {
		parts := strings.SplitN(assign, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("awstest: bad assignment %q", assign)
		}
		path := resolve(strings.TrimSpace(parts[0]), names)
		v, ok := vals[strings.TrimSpace(parts[1])]
		if !ok {
			return nil, fmt.Errorf("awstest: missing value %q", parts[1])
		}
		next[path] = v
	}
	t.items[k] = next
	return next, nil
}

func evalCondition(expr string, item map[string]types.AttributeValue, names map[string]string, vals map[string]types.AttributeValue) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true, nil
	}
	for _, clause := range strings.Split(expr, " AND ") {
		clause = strings.TrimSpace(clause)
		var ok bool
		switch {
		case strings.HasPrefix(clause, "attribute_exists(") && strings.HasSuffix(clause, ")"):
			_, ok = item[resolve(clause[len("attribute_exists("):len(clause)-1], names)]
		case strings.HasPrefix(clause, "attribute_not_exists(") && strings.HasSuffix(clause, ")"):
			_, exists := item[resolve(clause[len("attribute_not_exists("):len(clause)-1], names)]
			ok = !exists
		case strings.Contains(clause, "<>"):
			lhs, rhs := split2(clause, "<>")
			cur, exists := item[resolve(lhs, names)]
			ok = !exists || !equal(cur, vals[rhs])
		case strings.Contains(clause, "="):
			lhs, rhs := split2(clause, "=")
			want, found := vals[rhs]
			if !found {
				return false, fmt.Errorf("awstest: missing value %q", rhs)
			}
			cur, exists := item[resolve(lhs, names)]
			ok = exists && equal(cur, want)
		default:
			return false, fmt.Errorf("awstest: unsupported clause %q", clause)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func split2(s, sep string) (string, string) {
	parts := strings.SplitN(s, sep, 2)
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func resolve(path string, names map[string]string) string {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "#") {
		if n, ok := names[path]; ok {
			return n
		}
	}
	return path
}

func equal(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	}
	return false
}

func scalar(v types.AttributeValue) string {
	switch av := v.(type) {
	case *types.AttributeValueMemberS:
		return av.Value
	case *types.AttributeValueMemberN:
		return av.Value
	}
	return ""
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: sdkaws.String("The conditional request failed")}
}

func copyItem(in map[string]types.AttributeValue) map[string]types.AttributeValue {
	if in == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]map[string]types.AttributeValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
