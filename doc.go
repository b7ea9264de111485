// Package pipeperm evaluates machine learning pipelines by permutation.
//
// Given ordered pipeline steps, each with several interchangeable
// estimators, pipeperm enumerates every combination, tunes each one with an
// inner cross-validated hyperparameter search (grid or random), and scores
// the tuned pipeline on the test rows of an outer cross-validation. The
// (pipeline, outer fold) units run in parallel and fail independently.
//
// # Quick Start
//
//	p, err := permuter.New(
//	    permuter.StepCatalog{
//	        {Name: "scaler", Variants: []permuter.Variant{
//	            {Name: "standard", Estimator: preprocessing.NewStandardScaler()},
//	            {Name: "minmax", Estimator: preprocessing.NewMinMaxScalerDefault()},
//	        }},
//	        {Name: "clf", Variants: []permuter.Variant{
//	            {Name: "knn", Estimator: neighbors.NewKNeighborsClassifier()},
//	            {Name: "tree", Estimator: tree.NewDecisionTreeClassifier()},
//	        }},
//	    },
//	    permuter.ParamCatalog{
//	        "knn":  model_selection.Grid(model_selection.ParamGrid{"n_neighbors": {3, 5, 7}}),
//	        "tree": model_selection.Grid(model_selection.ParamGrid{"max_depth": {2, 4}}),
//	    },
//	    nil,
//	    permuter.WithNJobs(0),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := p.Fit(ctx, X, y, model_selection.NewKFold(5), model_selection.NewKFold(3)); err != nil {
//	    log.Fatal(err)
//	}
//	best, _ := p.BestPipeline()
//
// # Packages
//
//   - permuter: catalogs, enumeration, nested CV and the result views
//   - sklearn/model_selection: splitters, parameter spaces and the search driver
//   - sklearn/pipeline: ordered transformer chain ending in a predictor
//   - sklearn/linear_model, neighbors, tree, naive_bayes, decomposition, cluster: estimators
//   - preprocessing: StandardScaler and MinMaxScaler
//   - metrics: scorers and classification/regression reports
//   - core/model: Estimator contracts, StateManager and parameter coercion
//   - core/parallel: bounded fan-out
//   - pkg/errors, pkg/log: typed errors and structured logging
//
// The permuter command in cmd/permuter runs experiments described in YAML
// against a numeric CSV file.
package pipeperm
