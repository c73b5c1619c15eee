package models

// Image carries the raw binary payload for one ImageAnnotation or VideoFrame,
// stored and fetched independently of the owning Project so the large payload
// is never embedded in the project document. encoding/json base64-encodes the
// byte slice, which keeps the serialized form text-safe.
type Image struct {
	ImageID    string    `json:"image_id" bson:"image_id"`
	ImageBytes []byte    `json:"image_bytes" bson:"image_bytes"`
	Embeddings []float32 `json:"image_embeddings" bson:"image_embeddings"`
}

func NewImage(imageID string, imageBytes []byte) Image {
	return Image{
		ImageID:    imageID,
		ImageBytes: imageBytes,
	}
}

func (img *Image) SetEmbeddings(embeddings []float32) {
	img.Embeddings = embeddings
}
