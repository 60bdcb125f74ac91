// Package awstest provides in-memory stand-ins for the AWS clients used by the
// stores. The DynamoDB fake understands the small expression dialect the
// stores emit: SET updates (with if_not_exists), attribute_exists /
// attribute_not_exists and comparison clauses joined with AND.
package awstest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type item = map[string]types.AttributeValue

// Dynamo is a concurrency-safe in-memory DynamoDB.
type Dynamo struct {
	mu     sync.Mutex
	keys   map[string]string
	tables map[string]map[string]item
	fail   map[string][]error
	calls  map[string]int
}

// NewDynamo returns an empty fake. Tables must be created before use.
func NewDynamo() *Dynamo {
	return &Dynamo{
		keys:   map[string]string{},
		tables: map[string]map[string]item{},
		fail:   map[string][]error{},
		calls:  map[string]int{},
	}
}

// CreateTable registers a table with a single string partition key.
func (d *Dynamo) CreateTable(name, partitionKey string) *Dynamo {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys[name] = partitionKey
	if _, ok := d.tables[name]; !ok {
		d.tables[name] = map[string]item{}
	}
	return d
}

// FailNext makes the next call of op ("PutItem", "UpdateItem", ...) return err.
// Multiple calls queue errors in order.
func (d *Dynamo) FailNext(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[op] = append(d.fail[op], err)
}

// Calls reports how many times op was invoked.
func (d *Dynamo) Calls(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

// Item returns a copy of the stored item or nil.
func (d *Dynamo) Item(table, key string) map[string]types.AttributeValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	it, ok := d.tables[table][key]
	if !ok {
		return nil
	}
	return clone(it)
}

// Items returns copies of every item in a table, ordered by key.
func (d *Dynamo) Items(table string) []map[string]types.AttributeValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sorted(table, nil)
}

// Seed stores an item as-is.
func (d *Dynamo) Seed(table string, it map[string]types.AttributeValue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pk := d.keys[table]
	d.tables[table][keyString(it[pk])] = clone(it)
}

func (d *Dynamo) enter(op string) error {
	d.calls[op]++
	if q := d.fail[op]; len(q) > 0 {
		err := q[0]
		d.fail[op] = q[1:]
		return err
	}
	return nil
}

func (d *Dynamo) table(name *string) (map[string]item, string, error) {
	if name == nil {
		return nil, "", errors.New("table name required")
	}
	t, ok := d.tables[*name]
	if !ok {
		return nil, "", &types.ResourceNotFoundException{Message: sdkaws.String("table not found: " + *name)}
	}
	return t, d.keys[*name], nil
}

func (d *Dynamo) PutItem(ctx context.Context, in *dyn.PutItemInput, _ ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("PutItem"); err != nil {
		return nil, err
	}
	t, pk, err := d.table(in.TableName)
	if err != nil {
		return nil, err
	}
	key, ok := in.Item[pk]
	if !ok {
		return nil, fmt.Errorf("missing partition key %q", pk)
	}
	old := t[keyString(key)]
	if err := checkCondition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, old); err != nil {
		return nil, err
	}
	t[keyString(key)] = clone(in.Item)
	out := &dyn.PutItemOutput{}
	if in.ReturnValues == types.ReturnValueAllOld && old != nil {
		out.Attributes = clone(old)
	}
	return out, nil
}

func (d *Dynamo) GetItem(ctx context.Context, in *dyn.GetItemInput, _ ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("GetItem"); err != nil {
		return nil, err
	}
	t, pk, err := d.table(in.TableName)
	if err != nil {
		return nil, err
	}
	it, ok := t[keyString(in.Key[pk])]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: clone(it)}, nil
}

func (d *Dynamo) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, _ ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("UpdateItem"); err != nil {
		return nil, err
	}
	t, pk, err := d.table(in.TableName)
	if err != nil {
		return nil, err
	}
	key := keyString(in.Key[pk])
	old := t[key]
	if err := checkCondition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, old); err != nil {
		return nil, err
	}
	next, err := applyUpdate(old, in.Key, sdkaws.ToString(in.UpdateExpression), in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	t[key] = next
	out := &dyn.UpdateItemOutput{}
	switch in.ReturnValues {
	case types.ReturnValueAllNew, types.ReturnValueUpdatedNew:
		out.Attributes = clone(next)
	case types.ReturnValueAllOld, types.ReturnValueUpdatedOld:
		out.Attributes = clone(old)
	}
	return out, nil
}

func (d *Dynamo) DeleteItem(ctx context.Context, in *dyn.DeleteItemInput, _ ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("DeleteItem"); err != nil {
		return nil, err
	}
	t, pk, err := d.table(in.TableName)
	if err != nil {
		return nil, err
	}
	key := keyString(in.Key[pk])
	old := t[key]
	if err := checkCondition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, old); err != nil {
		return nil, err
	}
	delete(t, key)
	out := &dyn.DeleteItemOutput{}
	if in.ReturnValues == types.ReturnValueAllOld && old != nil {
		out.Attributes = clone(old)
	}
	return out, nil
}

// Query ignores IndexName: the key condition is evaluated against every item,
// which is what a GSI lookup returns for equality conditions.
func (d *Dynamo) Query(ctx context.Context, in *dyn.QueryInput, _ ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Query"); err != nil {
		return nil, err
	}
	if _, _, err := d.table(in.TableName); err != nil {
		return nil, err
	}
	var evalErr error
	items := d.sorted(*in.TableName, func(it item) bool {
		ok, err := evaluate(sdkaws.ToString(in.KeyConditionExpression), in.ExpressionAttributeNames, in.ExpressionAttributeValues, it)
		if err != nil {
			evalErr = err
			return false
		}
		if !ok {
			return false
		}
		ok, err = evaluate(sdkaws.ToString(in.FilterExpression), in.ExpressionAttributeNames, in.ExpressionAttributeValues, it)
		if err != nil {
			evalErr = err
		}
		return ok
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return &dyn.QueryOutput{Items: items, Count: int32(len(items))}, nil
}

func (d *Dynamo) Scan(ctx context.Context, in *dyn.ScanInput, _ ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Scan"); err != nil {
		return nil, err
	}
	if _, _, err := d.table(in.TableName); err != nil {
		return nil, err
	}
	var evalErr error
	items := d.sorted(*in.TableName, func(it item) bool {
		ok, err := evaluate(sdkaws.ToString(in.FilterExpression), in.ExpressionAttributeNames, in.ExpressionAttributeValues, it)
		if err != nil {
			evalErr = err
		}
		return ok
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return &dyn.ScanOutput{Items: items, Count: int32(len(items))}, nil
}

func (d *Dynamo) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, _ ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("TransactWriteItems"); err != nil {
		return nil, err
	}

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	cancelled := false
	for i, ti := range in.TransactItems {
		var (
			tableName *string
			keyItem   item
			cond      *string
			names     map[string]string
			values    map[string]types.AttributeValue
		)
		switch {
		case ti.Put != nil:
			tableName, keyItem, cond, names, values = ti.Put.TableName, ti.Put.Item, ti.Put.ConditionExpression, ti.Put.ExpressionAttributeNames, ti.Put.ExpressionAttributeValues
		case ti.Update != nil:
			tableName, keyItem, cond, names, values = ti.Update.TableName, ti.Update.Key, ti.Update.ConditionExpression, ti.Update.ExpressionAttributeNames, ti.Update.ExpressionAttributeValues
		case ti.Delete != nil:
			tableName, keyItem, cond, names, values = ti.Delete.TableName, ti.Delete.Key, ti.Delete.ConditionExpression, ti.Delete.ExpressionAttributeNames, ti.Delete.ExpressionAttributeValues
		case ti.ConditionCheck != nil:
			tableName, keyItem, cond, names, values = ti.ConditionCheck.TableName, ti.ConditionCheck.Key, ti.ConditionCheck.ConditionExpression, ti.ConditionCheck.ExpressionAttributeNames, ti.ConditionCheck.ExpressionAttributeValues
		default:
			return nil, errors.New("empty transact item")
		}
		t, pk, err := d.table(tableName)
		if err != nil {
			return nil, err
		}
		reasons[i] = types.CancellationReason{Code: sdkaws.String("None")}
		if err := checkCondition(cond, names, values, t[keyString(keyItem[pk])]); err != nil {
			reasons[i] = types.CancellationReason{Code: sdkaws.String("ConditionalCheckFailed")}
			cancelled = true
		}
	}
	if cancelled {
		return nil, &types.TransactionCanceledException{
			Message:             sdkaws.String("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}

	for _, ti := range in.TransactItems {
		switch {
		case ti.Put != nil:
			pk := d.keys[*ti.Put.TableName]
			d.tables[*ti.Put.TableName][keyString(ti.Put.Item[pk])] = clone(ti.Put.Item)
		case ti.Update != nil:
			pk := d.keys[*ti.Update.TableName]
			key := keyString(ti.Update.Key[pk])
			t := d.tables[*ti.Update.TableName]
			next, err := applyUpdate(t[key], ti.Update.Key, sdkaws.ToString(ti.Update.UpdateExpression), ti.Update.ExpressionAttributeNames, ti.Update.ExpressionAttributeValues)
			if err != nil {
				return nil, err
			}
			t[key] = next
		case ti.Delete != nil:
			pk := d.keys[*ti.Delete.TableName]
			delete(d.tables[*ti.Delete.TableName], keyString(ti.Delete.Key[pk]))
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (d *Dynamo) sorted(table string, keep func(item) bool) []item {
	t := d.tables[table]
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]item, 0, len(keys))
	for _, k := range keys {
		if keep == nil || keep(t[k]) {
			out = append(out, clone(t[k]))
		}
	}
	return out
}

func checkCondition(expr *string, names map[string]string, values map[string]types.AttributeValue, current item) error {
	ok, err := evaluate(sdkaws.ToString(expr), names, values, current)
	if err != nil {
		return err
	}
	if !ok {
		return &types.ConditionalCheckFailedException{Message: sdkaws.String("The conditional request failed")}
	}
	return nil
}

// evaluate supports clauses joined with OR and AND, AND binding tighter, and
// parenthesised groups. An empty expression is true.
func evaluate(expr string, names map[string]string, values map[string]types.AttributeValue, it item) (bool, error) {
	expr = stripOuterParens(strings.TrimSpace(expr))
	if expr == "" {
		return true, nil
	}
	if alts := splitTopLevelOp(expr, " OR "); len(alts) > 1 {
		for _, alt := range alts {
			ok, err := evaluate(alt, names, values, it)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	if terms := splitTopLevelOp(expr, " AND "); len(terms) > 1 {
		for _, term := range terms {
			ok, err := evaluate(term, names, values, it)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
	return evaluateClause(expr, names, values, it)
}

// stripOuterParens removes parentheses only when they enclose the whole
// string, so "attribute_exists(id)" is left alone.
func stripOuterParens(s string) string {
	for strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		depth := 0
		for i, r := range s {
			switch r {
			case '(':
				depth++
			case ')':
				depth--
			}
			if depth == 0 && i < len(s)-1 {
				return s
			}
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

func splitTopLevelOp(s, op string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		default:
			if depth == 0 && strings.HasPrefix(s[i:], op) {
				out = append(out, strings.TrimSpace(s[start:i]))
				i += len(op) - 1
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

func evaluateClause(clause string, names map[string]string, values map[string]types.AttributeValue, it item) (bool, error) {
	if strings.HasPrefix(clause, "attribute_exists(") {
		_, ok := it[resolveName(between(clause), names)]
		return ok, nil
	}
	if strings.HasPrefix(clause, "attribute_not_exists(") {
		_, ok := it[resolveName(between(clause), names)]
		return !ok, nil
	}
	parts := strings.Fields(clause)
	if len(parts) != 3 {
		return false, fmt.Errorf("unsupported expression clause %q", clause)
	}
	want, ok := values[parts[2]]
	if !ok {
		return false, fmt.Errorf("missing expression value %s", parts[2])
	}
	got, ok := it[resolveName(parts[0], names)]
	if !ok {
		return false, nil
	}
	cmp, comparable := compare(got, want)
	if !comparable {
		return false, nil
	}
	switch parts[1] {
	case "=":
		return cmp == 0, nil
	case "<>":
		return cmp != 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	}
	return false, fmt.Errorf("unsupported operator %q", parts[1])
}

func applyUpdate(current item, key item, expr string, names map[string]string, values map[string]types.AttributeValue) (item, error) {
	next := clone(current)
	if next == nil {
		next = clone(key)
	}
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "SET ") {
		return nil, fmt.Errorf("unsupported update expression %q", expr)
	}
	for _, assignment := range splitTopLevel(strings.TrimPrefix(expr, "SET ")) {
		lhs, rhs, found := strings.Cut(assignment, "=")
		if !found {
			return nil, fmt.Errorf("bad assignment %q", assignment)
		}
		attr := resolveName(strings.TrimSpace(lhs), names)
		rhs = strings.TrimSpace(rhs)
		if strings.HasPrefix(rhs, "if_not_exists(") {
			args := strings.Split(between(rhs), ",")
			if len(args) != 2 {
				return nil, fmt.Errorf("bad if_not_exists %q", rhs)
			}
			if _, exists := next[resolveName(strings.TrimSpace(args[0]), names)]; exists {
				continue
			}
			rhs = strings.TrimSpace(args[1])
		}
		v, ok := values[rhs]
		if !ok {
			return nil, fmt.Errorf("missing expression value %s", rhs)
		}
		next[attr] = v
	}
	return next, nil
}

func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

func between(s string) string {
	open := strings.Index(s, "(")
	closing := strings.LastIndex(s, ")")
	if open < 0 || closing < open {
		return s
	}
	return s[open+1 : closing]
}

func resolveName(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		if n, ok := names[name]; ok {
			return n
		}
	}
	return name
}

func compare(a, b types.AttributeValue) (int, bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.Value, bv.Value), true
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		if x, err1 := strconv.ParseInt(av.Value, 10, 64); err1 == nil {
			if y, err2 := strconv.ParseInt(bv.Value, 10, 64); err2 == nil {
				return cmpInt(x, y), true
			}
		}
		x, err1 := strconv.ParseFloat(av.Value, 64)
		y, err2 := strconv.ParseFloat(bv.Value, 64)
		if err1 != nil || err2 != nil {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		if !ok {
			return 0, false
		}
		if av.Value == bv.Value {
			return 0, true
		}
		return 1, true
	}
	return 0, false
}

func cmpInt(x, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func keyString(v types.AttributeValue) string {
	switch kv := v.(type) {
	case *types.AttributeValueMemberS:
		return kv.Value
	case *types.AttributeValueMemberN:
		return kv.Value
	}
	return ""
}

func clone(it item) item {
	if it == nil {
		return nil
	}
	out := make(item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}
