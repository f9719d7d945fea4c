package vector

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// contentKey is the payload field holding the chunk text. All other payload
// fields round-trip through Document.Metadata.
const contentKey = "content"

// QdrantRepository implements Repository against a remote Qdrant instance,
// which runs the similarity search server-side. Use it when the corpus
// outgrows the local linear-scan backends.
type QdrantRepository struct {
	conn       *grpc.ClientConn
	points     pb.PointsClient
	collection string
}

// NewQdrant connects to Qdrant over gRPC. apiKey may be empty for
// unauthenticated instances.
func NewQdrant(ctx context.Context, host string, port int, collection, apiKey string) (*QdrantRepository, error) {
	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if apiKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(apiKey)))
	}
	conn, err := grpc.NewClient(fmt.Sprintf("%s:%d", host, port), opts...)
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &QdrantRepository{
		conn:       conn,
		points:     pb.NewPointsClient(conn),
		collection: collection,
	}, nil
}

// apiKeyInterceptor attaches the Qdrant api-key header to every call.
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func (r *QdrantRepository) Upsert(ctx context.Context, docs []Document) error {
	points := make([]*pb.PointStruct, len(docs))
	for i := range docs {
		points[i] = toPoint(&docs[i])
	}
	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points:         points,
	})
	return err
}

func (r *QdrantRepository) Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("vector: topK must be positive, got %d", topK)
	}

	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(resp.Result))
	for i, pt := range resp.Result {
		results[i] = toResult(pt)
	}
	return results, nil
}

func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

func toPoint(d *Document) *pb.PointStruct {
	payload := make(map[string]*pb.Value, len(d.Metadata)+1)
	payload[contentKey] = stringValue(d.Content)
	for k, v := range d.Metadata {
		payload[k] = stringValue(v)
	}
	return &pb.PointStruct{
		Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: d.ID}},
		Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: d.Vector}}},
		Payload: payload,
	}
}

func toResult(pt *pb.ScoredPoint) SearchResult {
	result := SearchResult{
		ID:       pt.Id.GetUuid(),
		Score:    float64(pt.Score),
		Metadata: make(map[string]string, len(pt.Payload)),
	}
	for k, v := range pt.Payload {
		if k == contentKey {
			result.Content = v.GetStringValue()
			continue
		}
		result.Metadata[k] = v.GetStringValue()
	}
	return result
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}
