package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"OpenAttest-Chain/sdk/go/attest"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/proofs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(attest.Job{
				ID:         "job-demo",
				Status:     "pending",
				MaxRetries: 3,
				CreatedAt:  time.Now().Unix(),
			})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/proofs/job-demo", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(attest.Job{
			ID:     "job-demo",
			Status: "succeeded",
			Result: &attest.Record{
				Outcome:    "valid",
				Identifier: "0x30e2bfdaad2f3c218a1a8cc54fa1c4e6182b6b7f3bca273390cf587b50b47311",
				Owner:      "0x2f05a2e9d16cd5b68ae79ccd7efa2ccf3a71c5c0",
				Epoch:      3,
				Fields:     map[string]string{"kyc_status": "ADVANCED"},
			},
		})
	})
	mux.HandleFunc("/api/v1/epochs/current", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(attest.Epoch{
			ID:                 3,
			RequiredSignatures: 3,
			ValidFrom:          time.Now().Add(-24 * time.Hour).Unix(),
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := attest.NewClient(srv.URL, srv.Client())
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	current, err := client.CurrentEpoch(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("current epoch %d requires %d signatures\n", current.ID, current.RequiredSignatures)

	created, err := client.SubmitProof(ctx, attest.Submission{
		Proof: attest.Proof{
			Info: attest.Info{
				Provider:   "uidai-aadhar",
				Parameters: `{"url":"https://tathya.uidai.gov.in/ekyc","method":"GET"}`,
				Context:    `{"KYC_status":"ADVANCED"}`,
			},
			Claim: attest.Claim{
				Identifier: "0x30e2bfdaad2f3c218a1a8cc54fa1c4e6182b6b7f3bca273390cf587b50b47311",
				Owner:      "0x2f05a2e9d16cd5b68ae79ccd7efa2ccf3a71c5c0",
				TimestampS: uint64(time.Now().Unix()),
				Epoch:      current.ID,
			},
			Signatures: []string{"0x00"},
		},
	})
	if err != nil {
		panic(err)
	}
	fmt.Printf("submitted job %s (status=%s)\n", created.ID, created.Status)

	completed, err := client.GetProof(ctx, created.ID, 5)
	if err != nil {
		panic(err)
	}
	fmt.Printf("job %s finished: outcome=%s fields=%v\n", completed.ID, completed.Result.Outcome, completed.Result.Fields)
}
