// Package client is the QuantumDMN Go SDK for evaluating stored decision
// models.
//
// # Authenticating with a service-account key
//
// Zitadel machine users authenticate with a JSON key file. The token cache
// exchanges it for access tokens and refreshes them 60 seconds before expiry:
//
//	cache, err := auth.NewTokenCacheFromFile(
//	    "key.json", "https://auth.quantumdmn.com", zitadelProjectID, auth.Options{},
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c, err := client.New(client.Options{TokenSource: cache})
//
// A pre-issued token works too:
//
//	c, err := client.New(client.Options{Token: os.Getenv("QUANTUMDMN_TOKEN")})
//
// # Loading settings from a file or the environment
//
// NewFromConfig applies the same rules as the dmn CLI: a key file wins over a
// static token, and QUANTUMDMN_* variables override dmn.yaml.
//
//	cfg, err := config.Load("")
//	c, err := client.NewFromConfig(cfg, client.Options{Logger: logger})
//
// # Evaluating
//
// An Engine binds a client to a project. Inputs are converted to FEEL values
// with feel.FromRaw, so json.Number and decimal.Decimal keep their exact
// digits:
//
//	engine, err := client.NewEngine(c, "0b7c1c5e-8f5a-4d0e-9d55-2f7f0d3c9a11")
//	results, err := engine.Evaluate(ctx, "loan-approval", 0, map[string]any{
//	    "age":    25,
//	    "income": decimal.RequireFromString("50000.00"),
//	})
//	for id, r := range results {
//	    fmt.Println(id, r.Value)
//	}
//
// Use EvaluateContext with a feel.ContextBuilder when key order matters.
package client
