package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/ahmedsayedsa/orderbot/internal/cloud"
)

// DynamoLedger keeps the two ledgers in DynamoDB tables keyed by order_id,
// for deployments that already run on AWS and want the records queryable.
// The same invariants hold as for the file backend: the success table is
// capped to SuccessCap records (oldest evicted) and the failure table is
// rewritten wholesale by reconciliation.
type DynamoLedger struct {
	client       cloud.DynamoDBAPI
	successTable string
	failureTable string
	cap          int
	nowFunc      func() time.Time
}

var _ Ledger = (*DynamoLedger)(nil)

// NewDynamoLedger returns a ledger bound to the two tables.
func NewDynamoLedger(client cloud.DynamoDBAPI, successTable, failureTable string) *DynamoLedger {
	return &DynamoLedger{
		client:       client,
		successTable: successTable,
		failureTable: failureTable,
		cap:          SuccessCap,
		nowFunc:      time.Now,
	}
}

func (l *DynamoLedger) AppendSuccess(ctx context.Context, rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.nowFunc()
	}
	if err := l.put(ctx, l.successTable, rec); err != nil {
		return err
	}
	return l.enforceSuccessCap(ctx)
}

func (l *DynamoLedger) AppendFailure(ctx context.Context, rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.nowFunc()
	}
	return l.put(ctx, l.failureTable, rec)
}

func (l *DynamoLedger) FailureSnapshot(ctx context.Context) ([]Record, error) {
	return l.scan(ctx, l.failureTable)
}

// ReplaceFailures rewrites the failure table to exactly recs: entries absent
// from recs are deleted, the rest are put whole. Running it twice with the
// same input leaves the table identical.
func (l *DynamoLedger) ReplaceFailures(ctx context.Context, recs []Record) error {
	existing, err := l.scan(ctx, l.failureTable)
	if err != nil {
		return err
	}
	keep := make(map[string]bool, len(recs))
	for _, r := range recs {
		keep[r.OrderID] = true
	}
	for _, old := range existing {
		if keep[old.OrderID] {
			continue
		}
		if err := l.delete(ctx, l.failureTable, old.OrderID); err != nil {
			return err
		}
	}
	for _, r := range recs {
		if err := l.put(ctx, l.failureTable, r); err != nil {
			return err
		}
	}
	return nil
}

func (l *DynamoLedger) Stats(ctx context.Context) (Stats, error) {
	succ, err := l.scan(ctx, l.successTable)
	if err != nil {
		return Stats{}, err
	}
	fail, err := l.scan(ctx, l.failureTable)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Successful: len(succ), Failed: len(fail)}
	if ts, ok := newest(succ); ok {
		st.LastSuccessful = &ts
	}
	if ts, ok := newest(fail); ok {
		st.LastFailed = &ts
	}
	return st, nil
}

func (l *DynamoLedger) enforceSuccessCap(ctx context.Context) error {
	recs, err := l.scan(ctx, l.successTable)
	if err != nil {
		return err
	}
	if len(recs) <= l.cap {
		return nil
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Timestamp.Before(recs[j].Timestamp) })
	for _, old := range recs[:len(recs)-l.cap] {
		if err := l.delete(ctx, l.successTable, old.OrderID); err != nil {
			return err
		}
	}
	return nil
}

func (l *DynamoLedger) put(ctx context.Context, table string, rec Record) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal ledger record: %w", err)
	}
	_, err = l.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &table,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put ledger record: %w", err)
	}
	return nil
}

func (l *DynamoLedger) delete(ctx context.Context, table, orderID string) error {
	_, err := l.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &table,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return fmt.Errorf("delete ledger record: %w", err)
	}
	return nil
}

func (l *DynamoLedger) scan(ctx context.Context, table string) ([]Record, error) {
	var out []Record
	var startKey map[string]types.AttributeValue
	for {
		resp, err := l.client.Scan(ctx, &dyn.ScanInput{
			TableName:         &table,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			// A table that was never created is an empty ledger, same as a
			// missing file in the file backend.
			if isTableMissing(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("scan ledger table %s: %w", table, err)
		}
		var page []Record
		if err := attributevalue.UnmarshalListOfMaps(resp.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal ledger records: %w", err)
		}
		out = append(out, page...)
		if resp.LastEvaluatedKey == nil {
			break
		}
		startKey = resp.LastEvaluatedKey
	}
	return out, nil
}

func isTableMissing(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException"
}

func newest(recs []Record) (time.Time, bool) {
	var ts time.Time
	for _, r := range recs {
		if r.Timestamp.After(ts) {
			ts = r.Timestamp
		}
	}
	return ts, !ts.IsZero()
}
