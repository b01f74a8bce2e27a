package opensets

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Smeilz/dataset/pkg/conf"
	"github.com/Smeilz/dataset/pkg/dataset"
)

// Openset bundles the canonical train and test partitions of a corpus.
type Openset struct {
	Train *dataset.Dataset
	Test  *dataset.Dataset
}

var mnistDirFlag = conf.NewStringFlag(
	"opensets_mnist_dir",
	"Directory holding the four standard MNIST idx files, optionally gzipped.",
	"data/mnist",
)

const (
	mnistTrainImages = "train-images-idx3-ubyte"
	mnistTrainLabels = "train-labels-idx1-ubyte"
	mnistTestImages  = "t10k-images-idx3-ubyte"
	mnistTestLabels  = "t10k-labels-idx1-ubyte"
)

// MNIST loads the corpus from the directory named by the opensets_mnist_dir
// flag or the DATASET_OPENSETS_MNIST_DIR environment variable. Components
// are "images" (raw bytes, one row per digit) and "labels".
func MNIST() (*Openset, error) {
	return MNISTFromDir(mnistDirFlag.Value())
}

// MNISTFromDir loads the four standard idx files from dir.
func MNISTFromDir(dir string) (*Openset, error) {
	train, err := mnistPartition(dir, mnistTrainImages, mnistTrainLabels)
	if err != nil {
		return nil, errors.Wrap(err, "mnist train partition")
	}
	test, err := mnistPartition(dir, mnistTestImages, mnistTestLabels)
	if err != nil {
		return nil, errors.Wrap(err, "mnist test partition")
	}
	logrus.Debugf("loaded mnist from %s: %d train, %d test samples", dir, train.Len(), test.Len())
	return &Openset{Train: train, Test: test}, nil
}

func mnistPartition(dir, imagesName, labelsName string) (*dataset.Dataset, error) {
	imagesData, err := loadIDX(dir, imagesName)
	if err != nil {
		return nil, err
	}
	images, err := imagesData.byteRows()
	if err != nil {
		return nil, errors.Wrap(err, imagesName)
	}
	labelsData, err := loadIDX(dir, labelsName)
	if err != nil {
		return nil, err
	}
	labels, err := labelsData.intLabels()
	if err != nil {
		return nil, errors.Wrap(err, labelsName)
	}
	return dataset.New(map[string]dataset.Column{
		"images": dataset.ByteMatrix(images),
		"labels": dataset.IntColumn(labels),
	})
}
