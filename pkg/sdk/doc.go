// Package econpredict embeds the financial news importance classifier in a Go program.
//
// The client loads the tokenizer pool and classifier from a model directory,
// connects to a vector store and exposes the same operations as the HTTP API:
//
//	client, err := econpredict.New(ctx,
//	    econpredict.WithModel("model/finbert_v1-5e6_custom_eval"),
//	    econpredict.WithQdrant("http://localhost:6333", ""),
//	)
//	defer client.Close()
//
//	results, _ := client.Classify(ctx, []econpredict.Article{{Title: "…", Content: "…"}})
//	recent, _ := client.Recent(ctx, 10)
//	hits, _ := client.SearchKeywords(ctx, time.Hour, 5)
//	ok := client.Annotate(ctx, results[0].ID, 3)
//
// Without a loadable model the client serves stub predictions and Health
// reports the model as degraded.
package econpredict
