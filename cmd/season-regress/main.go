// season-regress relates growing-season length to an annual site variable
// such as gross primary productivity or mean spring temperature. It joins the
// season_lengths.csv table written by phenoflux with an annual-value CSV by
// year, fits constant, linear, and quadratic models, and compares them by
// information criteria.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// SeasonPoint is one joined year: the growing-season length and the annual
// variable observed that year.
type SeasonPoint struct {
	Year       int
	SeasonDays float64
	Value      float64
}

// ModelType represents the fitted relationship between season length and the
// annual variable.
type ModelType string

const (
	ModelConstant  ModelType = "constant"
	ModelLinear    ModelType = "linear"
	ModelQuadratic ModelType = "quadratic"
)

// RegressionResult contains the analysis results for a specific model
type RegressionResult struct {
	ModelType            ModelType
	ModelName            string
	Coefficients         []float64 // value = c0 + c1*days + c2*days² + ...
	RSquared             float64
	AdjustedRSquared     float64
	MeanAbsoluteError    float64
	RootMeanSquaredError float64
	AIC                  float64
	BIC                  float64
	SampleCount          int
}

// ComparisonResults contains all model results for comparison
type ComparisonResults struct {
	Models    []RegressionResult
	BestByAIC RegressionResult
	BestByBIC RegressionResult
}

func main() {
	var (
		seasonsFile = flag.String("seasons", "season_lengths.csv", "season_lengths.csv written by phenoflux")
		annualFile  = flag.String("annual", "", "CSV of year,value pairs to regress against")
		valueColumn = flag.Int("value-column", 1, "Zero-based column of the annual value")
		label       = flag.String("label", "annual value", "Name of the annual variable for display")
		csvOutput   = flag.String("csv", "", "Optional CSV output file path for residuals")
	)
	flag.Parse()

	if *annualFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -annual is required\n")
		os.Exit(1)
	}

	seasons, err := loadYearColumn(*seasonsFile, 1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", *seasonsFile, err)
		os.Exit(1)
	}
	annual, err := loadYearColumn(*annualFile, *valueColumn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", *annualFile, err)
		os.Exit(1)
	}

	points := joinByYear(seasons, annual)
	if len(points) < 6 {
		fmt.Fprintf(os.Stderr, "Error: only %d joined years. Need at least 6.\n", len(points))
		os.Exit(1)
	}

	fmt.Printf("Season Length Regression\n")
	fmt.Printf("========================\n\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Season lengths: %s\n", *seasonsFile)
	fmt.Printf("  Annual variable: %s (%s)\n", *annualFile, *label)
	fmt.Printf("  Joined years: %d\n\n", len(points))

	results := testAllModels(points)
	displayComparison(results, *label)
	displayBestModelDetails(results.BestByAIC, *label)

	if *csvOutput != "" {
		if err := exportCSV(*csvOutput, points, results.BestByAIC); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
		} else {
			fmt.Printf("\nData exported to: %s\n", *csvOutput)
		}
	}
}

// loadYearColumn reads a CSV whose first column is a year and returns the
// requested value column keyed by year. A non-numeric first row is treated as
// a header.
func loadYearColumn(path string, column int) (map[int]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	values := make(map[int]float64)
	for i, record := range records {
		if len(record) <= column {
			return nil, fmt.Errorf("row %d has %d columns, need at least %d", i+1, len(record), column+1)
		}
		year, err := strconv.Atoi(record[0])
		if err != nil {
			if i == 0 {
				continue // header
			}
			return nil, fmt.Errorf("row %d: bad year %q", i+1, record[0])
		}
		v, err := strconv.ParseFloat(record[column], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad value %q", i+1, record[column])
		}
		values[year] = v
	}
	return values, nil
}

func joinByYear(seasons, annual map[int]float64) []SeasonPoint {
	var points []SeasonPoint
	for year, days := range seasons {
		if v, ok := annual[year]; ok {
			points = append(points, SeasonPoint{Year: year, SeasonDays: days, Value: v})
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Year < points[j].Year })
	return points
}

func testAllModels(points []SeasonPoint) ComparisonResults {
	models := []RegressionResult{
		fitConstantModel(points),
		fitLinearModel(points),
		fitPolynomialModel(points, 2),
	}

	comparison := ComparisonResults{Models: models}
	comparison.BestByAIC = models[0]
	comparison.BestByBIC = models[0]
	for _, m := range models {
		if m.AIC < comparison.BestByAIC.AIC {
			comparison.BestByAIC = m
		}
		if m.BIC < comparison.BestByBIC.BIC {
			comparison.BestByBIC = m
		}
	}
	return comparison
}

func fitConstantModel(points []SeasonPoint) RegressionResult {
	values := extractValues(points)
	meanValue := stat.Mean(values, nil)

	result := RegressionResult{
		ModelType:    ModelConstant,
		ModelName:    "Constant",
		Coefficients: []float64{meanValue},
		SampleCount:  len(points),
	}
	finishResult(&result, points, 1)
	return result
}

func fitLinearModel(points []SeasonPoint) RegressionResult {
	days := extractDays(points)
	values := extractValues(points)

	// Linear regression: value = c0 + c1*days
	intercept, slope := stat.LinearRegression(days, values, nil, false)

	result := RegressionResult{
		ModelType:    ModelLinear,
		ModelName:    "Linear",
		Coefficients: []float64{intercept, slope},
		SampleCount:  len(points),
	}
	finishResult(&result, points, 2)
	return result
}

func fitPolynomialModel(points []SeasonPoint, degree int) RegressionResult {
	n := len(points)
	days := extractDays(points)
	values := extractValues(points)

	// Vandermonde matrix for polynomial least squares
	X := mat.NewDense(n, degree+1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= degree; j++ {
			X.Set(i, j, math.Pow(days[i], float64(j)))
		}
	}
	y := mat.NewVecDense(n, values)

	var qr mat.QR
	qr.Factorize(X)

	coeffs := mat.NewVecDense(degree+1, nil)
	if err := qr.SolveVecTo(coeffs, false, y); err != nil {
		fmt.Fprintf(os.Stderr, "Error solving polynomial regression: %v\n", err)
		return RegressionResult{ModelType: ModelQuadratic, ModelName: "Quadratic", AIC: math.Inf(1), BIC: math.Inf(1)}
	}

	coeff := make([]float64, degree+1)
	for i := 0; i <= degree; i++ {
		coeff[i] = coeffs.AtVec(i)
	}

	result := RegressionResult{
		ModelType:    ModelQuadratic,
		ModelName:    "Quadratic",
		Coefficients: coeff,
		SampleCount:  n,
	}
	finishResult(&result, points, degree+1)
	return result
}

// finishResult fills the quality metrics shared by every model.
func finishResult(result *RegressionResult, points []SeasonPoint, k int) {
	n := float64(len(points))
	predict := func(days float64) float64 { return evaluateModel(*result, days) }

	days := extractDays(points)
	values := extractValues(points)

	result.RSquared = calculateRSquared(days, values, predict)
	result.AdjustedRSquared = calculateAdjustedRSquared(result.RSquared, n, float64(k))
	result.MeanAbsoluteError = calculateMAE(days, values, predict)
	result.RootMeanSquaredError = calculateRMSE(days, values, predict)
	result.AIC = calculateAIC(n, result.RootMeanSquaredError, float64(k))
	result.BIC = calculateBIC(n, result.RootMeanSquaredError, float64(k))
}

func extractDays(points []SeasonPoint) []float64 {
	days := make([]float64, len(points))
	for i, p := range points {
		days[i] = p.SeasonDays
	}
	return days
}

func extractValues(points []SeasonPoint) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return values
}

func evaluateModel(model RegressionResult, days float64) float64 {
	result := 0.0
	for i, coeff := range model.Coefficients {
		result += coeff * math.Pow(days, float64(i))
	}
	return result
}

func calculateRSquared(x, y []float64, predict func(float64) float64) float64 {
	meanY := stat.Mean(y, nil)

	var ssTot, ssRes float64
	for i := range y {
		predicted := predict(x[i])
		ssTot += math.Pow(y[i]-meanY, 2)
		ssRes += math.Pow(y[i]-predicted, 2)
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - (ssRes / ssTot)
}

func calculateAdjustedRSquared(r2, n, k float64) float64 {
	if n-k-1 <= 0 {
		return 0
	}
	return 1 - ((1-r2)*(n-1))/(n-k-1)
}

func calculateMAE(x, y []float64, predict func(float64) float64) float64 {
	var sumAbsError float64
	for i := range y {
		sumAbsError += math.Abs(y[i] - predict(x[i]))
	}
	return sumAbsError / float64(len(y))
}

func calculateRMSE(x, y []float64, predict func(float64) float64) float64 {
	var sumSqError float64
	for i := range y {
		sumSqError += math.Pow(y[i]-predict(x[i]), 2)
	}
	return math.Sqrt(sumSqError / float64(len(y)))
}

func calculateAIC(n, rmse, k float64) float64 {
	// AIC = 2k + n*ln(SSE/n)
	sse := n * rmse * rmse
	if sse <= 0 {
		return math.Inf(1)
	}
	return 2*k + n*math.Log(sse/n)
}

func calculateBIC(n, rmse, k float64) float64 {
	// BIC = k*ln(n) + n*ln(SSE/n)
	sse := n * rmse * rmse
	if sse <= 0 {
		return math.Inf(1)
	}
	return k*math.Log(n) + n*math.Log(sse/n)
}

func displayComparison(results ComparisonResults, label string) {
	fmt.Printf("Model Comparison\n")
	fmt.Printf("================\n\n")

	models := make([]RegressionResult, len(results.Models))
	copy(models, results.Models)
	sort.Slice(models, func(i, j int) bool {
		return models[i].AIC < models[j].AIC
	})

	fmt.Printf("%-12s | %8s | %8s | %8s | %10s | %10s\n", "Model", "R²", "Adj R²", "RMSE", "AIC", "BIC")
	fmt.Printf("-------------+----------+----------+----------+------------+------------\n")
	for _, m := range models {
		marker := ""
		if m.ModelType == results.BestByAIC.ModelType {
			marker = " ← BEST (AIC)"
		}
		fmt.Printf("%-12s | %8.4f | %8.4f | %8.3f | %10.2f | %10.2f%s\n",
			m.ModelName, m.RSquared, m.AdjustedRSquared, m.RootMeanSquaredError, m.AIC, m.BIC, marker)
	}

	fmt.Printf("\nRecommendation:\n")
	fmt.Printf("  Best model by AIC: %s\n", results.BestByAIC.ModelName)
	if results.BestByAIC.ModelType != results.BestByBIC.ModelType {
		fmt.Printf("  Best model by BIC: %s (more conservative, penalizes complexity)\n", results.BestByBIC.ModelName)
	}

	if results.BestByAIC.RSquared < 0.3 {
		fmt.Printf("\n  WARNING: low R² (%.4f). Season length may not drive %s at this site.\n",
			results.BestByAIC.RSquared, label)
	}
	fmt.Println()
}

func displayBestModelDetails(model RegressionResult, label string) {
	fmt.Printf("Best Model Details (%s)\n", model.ModelName)
	fmt.Printf("=====================\n\n")

	fmt.Printf("Model equation:\n  ")
	switch model.ModelType {
	case ModelConstant:
		fmt.Printf("%s = %.4f\n", label, model.Coefficients[0])
	case ModelLinear:
		fmt.Printf("%s = %.6f + %.6f × days\n", label, model.Coefficients[0], model.Coefficients[1])
	case ModelQuadratic:
		fmt.Printf("%s = %.6f + %.6f × days + %.6f × days²\n",
			label, model.Coefficients[0], model.Coefficients[1], model.Coefficients[2])
	}

	fmt.Printf("\nQuality Metrics:\n")
	fmt.Printf("  R² = %.4f\n", model.RSquared)
	fmt.Printf("  Adjusted R² = %.4f\n", model.AdjustedRSquared)
	fmt.Printf("  RMSE = %.4f\n", model.RootMeanSquaredError)
	fmt.Printf("  MAE = %.4f\n", model.MeanAbsoluteError)
	fmt.Printf("  Sample size = %d\n", model.SampleCount)
	fmt.Println()
}

func exportCSV(filename string, points []SeasonPoint, model RegressionResult) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"year", "season_days", "value", "predicted", "residual"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range points {
		predicted := evaluateModel(model, p.SeasonDays)
		record := []string{
			strconv.Itoa(p.Year),
			fmt.Sprintf("%.1f", p.SeasonDays),
			fmt.Sprintf("%.4f", p.Value),
			fmt.Sprintf("%.4f", predicted),
			fmt.Sprintf("%.4f", p.Value-predicted),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}
