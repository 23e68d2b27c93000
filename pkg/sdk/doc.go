// Package aivis is a Go client for the aivis HTTP API.
//
// A run sends every phrase to every configured model, scores the answers and
// streams events back while it works. Consume them one at a time:
//
//	client, _ := aivis.New("http://localhost:8080", aivis.WithAPIKey(key))
//	stream, err := client.StartRun(ctx, 42, aivis.RunRequest{
//	    Items: []aivis.Item{{Keyword: "crm", Phrases: []string{"best crm for startups"}}},
//	})
//	if err != nil {
//	    return err // errors.Is(err, aivis.ErrTooManyRuns) when both slots are taken
//	}
//	defer stream.Close()
//	for {
//	    ev, err := stream.Next()
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    ...
//	}
//
// or let Run drive the stream and hand each event to a callback:
//
//	summary, err := client.Run(ctx, 42, req, func(ev aivis.Event) error {
//	    if ev.Result != nil {
//	        fmt.Println(ev.Result.Model, ev.Result.Scores.Overall)
//	    }
//	    return nil
//	})
package aivis
