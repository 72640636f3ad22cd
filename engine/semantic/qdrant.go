package semantic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atlasdocs/atlas-engine/engine/domain"
	"github.com/atlasdocs/atlas-engine/pkg/fn"
	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// upsertRetry covers transient write failures. Upserts carry fixed point
// ids, so repeating one is idempotent.
var upsertRetry = fn.RetryOpts{
	MaxAttempts: 3,
	InitialWait: 200 * time.Millisecond,
	MaxWait:     2 * time.Second,
	Jitter:      true,
}

// QdrantStore is the networked ANN backend. It is the sole owner of all
// Qdrant operations; ranking is delegated to the remote index.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string

	mu  sync.Mutex
	dim int // 0 until the collection is provisioned
}

// NewQdrant creates a QdrantStore connected to Qdrant at the given gRPC
// address. The collection is provisioned lazily by the first Add.
func NewQdrant(addr, collection string) (*QdrantStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &QdrantStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (q *QdrantStore) Close() error {
	return q.conn.Close()
}

// ensureCollection creates the collection if it doesn't exist, sized to
// dims with cosine distance. Must hold mu.
func (q *QdrantStore) ensureCollection(ctx context.Context, dims int) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return nil
		}
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}
	return nil
}

// Add implements Store.
func (q *QdrantStore) Add(ctx context.Context, vectors [][]float32, payloads []map[string]any, ids []string) ([]string, error) {
	if len(vectors) == 0 {
		return nil, nil
	}

	q.mu.Lock()
	if q.dim == 0 {
		if err := q.ensureCollection(ctx, len(vectors[0])); err != nil {
			q.mu.Unlock()
			return nil, &domain.RetrievalError{Op: "add", Err: err}
		}
		q.dim = len(vectors[0])
	}
	dim := q.dim
	q.mu.Unlock()

	for _, v := range vectors {
		if len(v) != dim {
			return nil, &domain.DimensionError{Want: dim, Got: len(v)}
		}
	}

	if ids == nil {
		ids = make([]string, len(vectors))
		for i := range ids {
			ids[i] = uuid.NewString()
		}
	}

	points := make([]*pb.PointStruct, len(vectors))
	for i, vec := range vectors {
		var payload map[string]*pb.Value
		if i < len(payloads) {
			payload = toQdrantPayload(payloads[i])
		}
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: ids[i]},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vec},
				},
			},
			Payload: payload,
		}
	}

	wait := true
	result := fn.Retry(ctx, upsertRetry, func(ctx context.Context) fn.Result[*pb.PointsOperationResponse] {
		return fn.FromPair(q.points.Upsert(ctx, &pb.UpsertPoints{
			CollectionName: q.collection,
			Wait:           &wait,
			Points:         points,
		}))
	})
	if _, err := result.Unwrap(); err != nil {
		return nil, &domain.RetrievalError{Op: "add", Err: fmt.Errorf("upsert %d points: %w", len(points), err)}
	}
	return ids, nil
}

// Search implements Store.
func (q *QdrantStore) Search(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]SearchResult, error) {
	q.mu.Lock()
	dim := q.dim
	q.mu.Unlock()
	if dim != 0 && len(vector) != dim {
		return nil, &domain.DimensionError{Want: dim, Got: len(vector)}
	}

	req := &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}

	if len(filter) > 0 {
		must := make([]*pb.Condition, 0, len(filter))
		for k, val := range filter {
			must = append(must, fieldMatch(k, val))
		}
		req.Filter = &pb.Filter{Must: must}
	}

	resp, err := q.points.Search(ctx, req)
	if err != nil {
		return nil, &domain.RetrievalError{Op: "search", Err: err}
	}

	results := make([]SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		results[i] = SearchResult{
			ID:      r.GetId().GetUuid(),
			Score:   r.GetScore(),
			Payload: fromQdrantPayload(r.GetPayload()),
		}
	}
	return results, nil
}

// Delete implements Store.
func (q *QdrantStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
	}

	wait := true
	_, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return &domain.RetrievalError{Op: "delete", Err: fmt.Errorf("delete %d points: %w", len(ids), err)}
	}
	return nil
}

// DeleteByDoc implements Store. Used when a document is removed or
// re-ingested.
func (q *QdrantStore) DeleteByDoc(ctx context.Context, docID string) error {
	wait := true
	_, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						fieldMatch("doc_id", docID),
					},
				},
			},
		},
	})
	if err != nil {
		return &domain.RetrievalError{Op: "delete_by_doc", Err: fmt.Errorf("doc %s: %w", docID, err)}
	}
	return nil
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func toQdrantPayload(payload map[string]any) map[string]*pb.Value {
	out := make(map[string]*pb.Value, len(payload))
	for k, val := range payload {
		switch tv := val.(type) {
		case string:
			out[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
		case int:
			out[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
		case int64:
			out[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
		case float64:
			out[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
		case bool:
			out[k] = &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
		default:
			out[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
		}
	}
	return out
}

func fromQdrantPayload(payload map[string]*pb.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, val := range payload {
		switch kind := val.GetKind().(type) {
		case *pb.Value_StringValue:
			out[k] = kind.StringValue
		case *pb.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *pb.Value_DoubleValue:
			out[k] = kind.DoubleValue
		case *pb.Value_BoolValue:
			out[k] = kind.BoolValue
		default:
			out[k] = val.String()
		}
	}
	return out
}
