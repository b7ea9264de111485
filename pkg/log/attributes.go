// Package log defines standard attribute keys for pipeline evaluation.
//
// Keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples", "search.candidates") so log records can be filtered by
// category.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of estimator.
	// Examples: "StandardScaler", "KNeighborsClassifier"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "score", "search"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component or package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the evaluation phase.
	// Examples: "validation", "preprocessing", "testing"
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// TrainSizeKey is the number of training rows of a fold.
	TrainSizeKey = "data.train_size"

	// TestSizeKey is the number of held-out rows of a fold.
	TestSizeKey = "data.test_size"
)

// Pipeline evaluation
const (
	// RunIDKey correlates all records of one Fit call.
	RunIDKey = "run.id"

	// PipelineKey is the canonical name of a pipeline definition,
	// e.g. "scaler=StandardScaler|clf=KNN".
	PipelineKey = "pipeline.name"

	// PipelineIndexKey is the enumeration index of a pipeline definition.
	PipelineIndexKey = "pipeline.index"

	// PipelinesKey is the number of pipeline definitions in a run.
	PipelinesKey = "pipeline.count"

	// FoldKey is the outer fold index.
	FoldKey = "cv.fold"

	// OuterFoldsKey is the number of outer folds.
	OuterFoldsKey = "cv.outer_folds"

	// InnerFoldsKey is the number of inner folds.
	InnerFoldsKey = "cv.inner_folds"

	// SearchMethodKey is "grid" or "random".
	SearchMethodKey = "search.method"

	// CandidatesKey is the number of hyperparameter configurations evaluated.
	CandidatesKey = "search.candidates"

	// ScoringKey names the scoring function.
	ScoringKey = "search.scoring"

	// ScoreKey records a test or validation score.
	ScoreKey = "metrics.score"

	// FailedUnitsKey counts failed (pipeline, fold) units.
	FailedUnitsKey = "run.failed_units"

	// WorkersKey is the number of concurrent units.
	WorkersKey = "run.workers"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// IterationKey records the current iteration number during iterative processes.
	IterationKey = "training.iteration"
)

// Error and Warning Context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	// Examples: "ConfigurationError", "UnitFailure", "QueryError"
	ErrorTypeKey = "error.type"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
	OperationSearch    = "search"

	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"
)
