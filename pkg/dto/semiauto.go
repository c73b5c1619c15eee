package dto

type AddPointRequest struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label int     `json:"label"` // 0 background, 1 foreground
}

type SetBoxRequest struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

type PredictResponse struct {
	Polygons [][][2]float64 `json:"polygons"`
}
