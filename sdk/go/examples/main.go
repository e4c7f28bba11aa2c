package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"NFTScout/sdk/go/nftscout"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/collections/sessions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		events := []nftscout.Event{
			{SessionID: "demo", Kind: nftscout.KindPreviewCandidate, Payload: json.RawMessage(`{"name":"EON MUN","chain":"ethereum"}`)},
			{SessionID: "demo", Kind: nftscout.KindSavedID, Payload: json.RawMessage(`{"collection_id":"collection-demo"}`)},
			{SessionID: "demo", Kind: nftscout.KindTerminal, Payload: json.RawMessage(`{"status":"completed"}`)},
		}
		for _, event := range events {
			data, _ := json.Marshal(event)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, data)
			flusher.Flush()
		}
	})
	mux.HandleFunc("/api/v1/collections/collection-demo", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(nftscout.CollectionRecord{
			ID:        "collection-demo",
			Data:      json.RawMessage(`{"name":"EON MUN","chain":"ethereum"}`),
			CreatedAt: time.Now().UTC(),
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := nftscout.NewClient(srv.URL, srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	projection := nftscout.NewProjection()
	navigator := nftscout.NewNavigator(func(id string) {
		fmt.Printf("navigating to collection %s\n", id)
	})

	err := client.StartSession(ctx, nftscout.SessionRequest{Message: "find the EON MUN collection"}, func(event nftscout.Event) {
		projection.Apply(event)
		navigator.OnEvent(event)
	})
	if err != nil {
		panic(err)
	}

	record, err := client.GetCollection(ctx, projection.CollectionID())
	if err != nil {
		panic(err)
	}
	fmt.Printf("retrieved collection %s data=%s\n", record.ID, record.Data)
}
